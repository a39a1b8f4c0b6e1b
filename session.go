package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/placesauth/internal/logging"
)

// RevocationLedger tracks tokens that were logged out before expiry.
type RevocationLedger struct {
	store RevokedTokenStore
	now   func() time.Time
}

func NewRevocationLedger(store RevokedTokenStore) *RevocationLedger {
	return &RevocationLedger{store: store, now: time.Now}
}

// Record marks token as revoked. Recording the same token twice is a no-op.
func (l *RevocationLedger) Record(ctx context.Context, token string) error {
	if err := l.store.RevokeToken(ctx, token, l.now()); err != nil {
		return fmt.Errorf("recording revoked token: %w", err)
	}
	return nil
}

func (l *RevocationLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := l.store.IsTokenRevoked(ctx, token)
	if err != nil {
		return false, fmt.Errorf("checking revoked token: %w", err)
	}
	return revoked, nil
}

// SessionAuthenticator turns an Authorization header into verified claims.
type SessionAuthenticator struct {
	ledger *RevocationLedger
	tokens *TokenIssuer
}

func NewSessionAuthenticator(ledger *RevocationLedger, tokens *TokenIssuer) *SessionAuthenticator {
	return &SessionAuthenticator{ledger: ledger, tokens: tokens}
}

// bearerToken extracts the token from "Bearer <token>". ok is false for any
// other shape, including an empty token.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", false
	}
	return tok, true
}

// Authenticate checks the revocation ledger before the signature, so a
// revoked token is reported as revoked even if it has also expired.
func (s *SessionAuthenticator) Authenticate(ctx context.Context, header string) (Claims, error) {
	tok, ok := bearerToken(header)
	if !ok {
		return Claims{}, ErrMissingToken
	}
	revoked, err := s.ledger.IsRevoked(ctx, tok)
	if err != nil {
		return Claims{}, err
	}
	if revoked {
		return Claims{}, ErrTokenRevoked
	}
	claims, err := s.tokens.Verify(tok)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

type contextKey string

const (
	claimsKey contextKey = "claims"
	tokenKey  contextKey = "token"
	holderKey contextKey = "session-holder"
)

// sessionHolder lets outer middleware see who the inner session gate admitted.
type sessionHolder struct {
	subject string
}

func withSessionHolder(ctx context.Context, h *sessionHolder) context.Context {
	return context.WithValue(ctx, holderKey, h)
}

func withClaims(ctx context.Context, c Claims, token string) context.Context {
	ctx = context.WithValue(ctx, claimsKey, c)
	return context.WithValue(ctx, tokenKey, token)
}

// ClaimsFromContext returns the claims attached by RequireSession.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok
}

// TokenFromContext returns the raw bearer token attached by RequireSession.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok
}

// RequireSession rejects requests without a valid, unrevoked bearer token.
func RequireSession(auth *SessionAuthenticator, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			claims, err := auth.Authenticate(r.Context(), header)
			if err != nil {
				writeServiceError(r.Context(), log, w, err)
				return
			}
			tok, _ := bearerToken(header)
			if h, ok := r.Context().Value(holderKey).(*sessionHolder); ok {
				h.subject = claims.Subject
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims, tok)))
		})
	}
}
