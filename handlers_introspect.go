package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// TokenInfo is the introspection response. Inactive tokens carry no other fields.
type TokenInfo struct {
	Active    bool   `json:"active"`
	Subject   string `json:"sub,omitempty"`
	Email     string `json:"email,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// HandleTokenIntrospect reports whether a token would pass the session gate.
// POST /api/users/introspect
func (a *App) HandleTokenIntrospect(w http.ResponseWriter, r *http.Request) {
	var req introspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeServiceError(r.Context(), a.Log, w, err)
		return
	}

	claims, err := a.Sessions.Authenticate(r.Context(), "Bearer "+req.Token)
	switch {
	case err == nil:
	case isSessionRejection(err):
		writeJSON(w, http.StatusOK, TokenInfo{Active: false})
		return
	default:
		writeServiceError(r.Context(), a.Log, w, err)
		return
	}

	info := TokenInfo{
		Active:    true,
		Subject:   claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	if !claims.IssuedAt.IsZero() {
		info.IssuedAt = claims.IssuedAt.Unix()
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleHealth reports liveness.
func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady pings the store.
func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.DB.Ping(ctx); err != nil {
		a.Log.Warn(ctx, "readiness check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
