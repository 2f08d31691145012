package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sphllzulu/QuickPactv2/pkg/logger"
	"github.com/sphllzulu/QuickPactv2/service"
)

// statusFor maps service errors to HTTP status codes. Errors it does not
// recognise get fallback.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrGenerationInFlight),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrExportFailed):
		return http.StatusInternalServerError
	default:
		return fallback
	}
}

// abortWithError writes {"error": msg} plus any extra fields
func abortWithError(c *gin.Context, err error, fallback int, extra gin.H) {
	status := statusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "status", status, "error", err)
	}

	body := gin.H{"error": service.UserMessage(err)}
	for k, v := range extra {
		body[k] = v
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
