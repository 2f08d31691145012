package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testSessionConfig() *config.SessionConfig {
	return &config.SessionConfig{
		Secret:      "test-secret-key",
		TTLMinutes:  60,
		MaxSessions: 10,
	}
}

func TestGenerateSessionToken(t *testing.T) {
	cfg := testSessionConfig()

	token, expiresAt, err := GenerateSessionToken("session-123", cfg)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if token == "" {
		t.Error("Expected non-empty token")
	}

	// Verify expiration time is approximately one TTL from now
	expectedExpiry := time.Now().Add(time.Hour)
	if expiresAt.Before(expectedExpiry.Add(-time.Minute)) || expiresAt.After(expectedExpiry.Add(time.Minute)) {
		t.Errorf("Expiry time %v is not within expected range of %v", expiresAt, expectedExpiry)
	}

	sessionID, err := ParseSessionToken(token, cfg)
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if sessionID != "session-123" {
		t.Errorf("Expected session-123, got %s", sessionID)
	}
}

func TestParseSessionTokenWrongSecret(t *testing.T) {
	token, _, err := GenerateSessionToken("session-123", testSessionConfig())
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	other := testSessionConfig()
	other.Secret = "another-secret"
	if _, err := ParseSessionToken(token, other); err == nil {
		t.Error("Expected error for token signed with a different secret")
	}
}

func TestSessionAuth(t *testing.T) {
	cfg := testSessionConfig()
	store := service.NewSessionStore(cfg)
	sess := store.Create()

	token, _, err := GenerateSessionToken(sess.ID, cfg)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	orphan, _, err := GenerateSessionToken("no-such-session", cfg)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	tests := []struct {
		name           string
		authHeader     string
		cookie         string
		expectedStatus int
	}{
		{
			name:           "valid bearer token",
			authHeader:     "Bearer " + token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid cookie",
			cookie:         token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid format",
			authHeader:     token, // Missing "Bearer "
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown session",
			authHeader:     "Bearer " + orphan,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(SessionAuth(cfg, store))
			router.GET("/test", func(c *gin.Context) {
				got := GetSession(c)
				if got == nil || got.ID != sess.ID {
					t.Errorf("Expected session %s in context", sess.ID)
				}
				c.JSON(http.StatusOK, gin.H{"message": "ok"})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestSessionAuthExpiredToken(t *testing.T) {
	cfg := testSessionConfig()
	store := service.NewSessionStore(cfg)
	sess := store.Create()

	// Create an expired token
	claims := Claims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)), // Expired 1 hour ago
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(cfg.Secret))

	router := gin.New()
	router.Use(SessionAuth(cfg, store))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d for expired token, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestSessionAuthDeletedSession(t *testing.T) {
	cfg := testSessionConfig()
	store := service.NewSessionStore(cfg)
	sess := store.Create()
	token, _, _ := GenerateSessionToken(sess.ID, cfg)
	store.Delete(sess.ID)

	router := gin.New()
	router.Use(SessionAuth(cfg, store))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d for deleted session, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestGetSession(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetSession(c) != nil {
		t.Error("Expected nil for unset session")
	}

	sess := service.NewSession("abc", time.Now())
	c.Set(sessionKey, sess)
	if GetSession(c) != sess {
		t.Error("Expected stored session")
	}
}
