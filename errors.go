package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/example/placesauth/internal/logging"
)

var (
	// ErrAlreadyExists is returned by Register when the email is taken.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Session rejections, in the order the authenticator checks them.
	ErrMissingToken = errors.New("missing or invalid token")
	ErrTokenRevoked = errors.New("token revoked")
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrDuplicate is returned by stores when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UpstreamError is a failed call to the places API. Message is safe to show to clients.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// APIError represents a structured API error response
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

const msgInternal = "Internal server error"

// writeServiceError maps domain errors to their stable status and message.
// Anything unrecognised is logged and answered with a redacted 500.
func writeServiceError(ctx context.Context, log logging.Logger, w http.ResponseWriter, err error) {
	var uerr *UpstreamError
	if verr, ok := asValidationError(err); ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message)
		return
	}
	switch {
	case errors.Is(err, ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, "USER_EXISTS", "User already exists")
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, ErrMissingToken):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized: Missing or invalid token")
	case errors.Is(err, ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
	case errors.Is(err, ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
	case errors.As(err, &uerr):
		log.Error(ctx, "upstream call failed", "err", uerr.Err)
		writeError(w, http.StatusInternalServerError, "UPSTREAM_ERROR", uerr.Message)
	default:
		log.Error(ctx, "request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
	}
}

// isSessionRejection reports whether err is a 401 from the session gate
// rather than an infrastructure failure.
func isSessionRejection(err error) bool {
	return errors.Is(err, ErrMissingToken) || errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrInvalidToken)
}
