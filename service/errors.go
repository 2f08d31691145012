package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a submit that is rejected before any state change
	ErrValidation = errors.New("validation failed")
	// ErrGenerationInFlight is returned while a session already has a request outstanding
	ErrGenerationInFlight = errors.New("a contract is already being generated")
	// ErrInvalidTransition is returned when an operation does not apply to the current phase
	ErrInvalidTransition = errors.New("operation not allowed in the current phase")
	// ErrUnknownField is returned for an edit of a field that does not exist
	ErrUnknownField = errors.New("unknown contract field")
	// ErrRateLimited is returned by the AI client when the provider throttles
	ErrRateLimited = errors.New("AI provider rate limit exceeded")
	// ErrNoDocument is returned when exporting a session that has nothing generated
	ErrNoDocument = errors.New("no contract has been generated yet")
	// ErrExportFailed wraps any failure while building a PDF
	ErrExportFailed = errors.New("PDF export failed")
	// ErrSessionClosed is returned when a result arrives for an abandoned session
	ErrSessionClosed = errors.New("session was abandoned")
)

// RequestError is a non-2xx response from the AI provider
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("AI provider request failed with status %d: %s", e.StatusCode, body)
}

// UserMessage turns a generation error into the message shown to the user
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "The AI service is receiving too many requests. Please try again in a moment."
	case errors.Is(err, ErrExportFailed):
		return "Failed to generate PDF. Please try again."
	default:
		return err.Error()
	}
}
