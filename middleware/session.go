package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
	"github.com/sphllzulu/QuickPactv2/service"
)

// SessionCookie carries the session token for browser clients
const SessionCookie = "quickpact_session"

const sessionKey = "session"

// Claims identifies the contract session a token was issued for
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a token for the session, valid for the session TTL
func GenerateSessionToken(sessionID string, cfg *config.SessionConfig) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(cfg.TTLMinutes) * time.Minute)

	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ParseSessionToken validates the signature and expiry and returns the session id
func ParseSessionToken(tokenString string, cfg *config.SessionConfig) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.SessionID == "" {
		return "", errors.New("token carries no session")
	}
	return claims.SessionID, nil
}

// SessionAuth resolves the caller's session from a Bearer token or the session
// cookie. Requests without a live session are rejected with 401.
func SessionAuth(cfg *config.SessionConfig, store *service.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := sessionToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session token required"})
			return
		}

		sessionID, err := ParseSessionToken(tokenString, cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session token"})
			return
		}

		sess := store.Get(sessionID)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session not found or expired"})
			return
		}

		c.Set(sessionKey, sess)
		c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), sess.ID))

		c.Next()
	}
}

func sessionToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// GetSession returns the session resolved by SessionAuth, or nil
func GetSession(c *gin.Context) *service.Session {
	if v, exists := c.Get(sessionKey); exists {
		if sess, ok := v.(*service.Session); ok {
			return sess
		}
	}
	return nil
}
