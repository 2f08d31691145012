package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sphllzulu/QuickPactv2/service"
)

func TestRequestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Capture log output
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.GET("/api/contract-types", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	router.POST("/api/session/generate", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "summary is required"})
	})
	router.GET("/api/session/export", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate PDF. Please try again."})
	})

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		logLevel       string
	}{
		{"success request", "GET", "/api/contract-types", http.StatusOK, "INFO"},
		{"client error", "POST", "/api/session/generate", http.StatusBadRequest, "WARN"},
		{"export failure", "GET", "/api/session/export", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			logOutput := buf.String()
			if !strings.Contains(logOutput, "request completed") {
				t.Error("Expected 'request completed' in log")
			}
			if !strings.Contains(logOutput, tt.path) {
				t.Errorf("Expected path '%s' in log", tt.path)
			}
			if !strings.Contains(logOutput, tt.logLevel) {
				t.Errorf("Expected log level '%s' in log", tt.logLevel)
			}
		})
	}
}

func TestRequestLoggerWithQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/api/session/export", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/pdf", []byte("%PDF-"))
	})

	req := httptest.NewRequest("GET", "/api/session/export?mode=print", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "mode=print") {
		t.Errorf("Expected query parameters in log, got %s", logOutput)
	}
}

func TestRequestLoggerIncludesSession(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := testSessionConfig()
	store := service.NewSessionStore(cfg)
	sess := store.Create()
	token, _, err := GenerateSessionToken(sess.ID, cfg)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.GET("/api/session", SessionAuth(cfg, store), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetSession(c).ID})
	})

	req := httptest.NewRequest("GET", "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "session_id="+sess.ID) {
		t.Errorf("Expected session id in access log, got %s", logOutput)
	}
	if !strings.Contains(logOutput, "request_id=") {
		t.Errorf("Expected request id in access log, got %s", logOutput)
	}
	if strings.Contains(logOutput, token) {
		t.Error("Session token must not be logged")
	}
}
