package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/middleware"
	"github.com/sphllzulu/QuickPactv2/model"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
	"github.com/sphllzulu/QuickPactv2/service"
)

type SessionHandler struct {
	config *config.SessionConfig
	store  *service.SessionStore
}

func NewSessionHandler(cfg *config.SessionConfig, store *service.SessionStore) *SessionHandler {
	return &SessionHandler{config: cfg, store: store}
}

type CreateSessionResponse struct {
	Token     string            `json:"token"`
	ExpiresAt string            `json:"expires_at"`
	Session   model.SessionView `json:"session"`
}

// Create starts a new contract session and issues its token, also as a cookie
func (h *SessionHandler) Create(c *gin.Context) {
	sess := h.store.Create()

	token, expiresAt, err := middleware.GenerateSessionToken(sess.ID, h.config)
	if err != nil {
		h.store.Delete(sess.ID)
		abortWithError(c, err, http.StatusInternalServerError, nil)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(time.Until(expiresAt).Seconds()), "/", "", c.Request.TLS != nil, true)

	logger.Info(logger.WithSessionID(c.Request.Context(), sess.ID), "session created")

	c.JSON(http.StatusCreated, CreateSessionResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Session:   sess.View(),
	})
}

// Get returns the caller's session state
func (h *SessionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.GetSession(c).View())
}

// Delete abandons the session, cancelling any generation in flight
func (h *SessionHandler) Delete(c *gin.Context) {
	sess := middleware.GetSession(c)
	h.store.Delete(sess.ID)

	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	logger.Info(c.Request.Context(), "session abandoned")

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}
