package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpggio/interview/internal/auth"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID from context, if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// RequestIDMiddleware propagates X-Request-Id, minting one when absent, and
// echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticator resolves a raw API key to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// AuthMiddleware enforces API key authentication.
func AuthMiddleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r.Context(), auth.TokenFromRequest(r))
			if err != nil {
				WriteError(w, auth.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// Admitter admits requests per key.
type Admitter interface {
	Admit(key, scope string) bool
}

// apiScope is the limiter scope for REST requests.
const apiScope = "api"

// RateLimitMiddleware admits requests per authenticated key. It must run
// after AuthMiddleware.
func RateLimitMiddleware(limiter Admitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "anonymous"
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				key = p.KeyID
			}
			if !limiter.Admit(key, apiScope) {
				writeJSON(w, http.StatusTooManyRequests, ErrorBody{
					ErrorCode:    "RATE_LIMITED",
					Message:      "API rate limit exceeded",
					RecoveryHint: "Retry after a minute",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
