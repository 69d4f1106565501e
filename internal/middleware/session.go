package middleware

import (
	"context"
	"net/http"
	"strings"

	"audiotour/internal/logger"
	"audiotour/internal/session"
)

// Injected key type to avoid context collisions
type contextKey string

const (
	// SessionContextKey holds the *session.Session for the request.
	SessionContextKey = contextKey("session")
	// TokenContextKey holds the raw session token (needed by logout).
	TokenContextKey = contextKey("session_token")
)

// SessionMiddleware resolves the Bearer token against the session store and
// injects the authenticated session into the request context. Identity is
// email-only; the token is an opaque handle, not a credential.
func SessionMiddleware(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.New()
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Error().Msg("Authorization header missing")
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Error().Msg("Invalid authorization header")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			token := parts[1]
			sess := store.Get(token)
			if sess == nil || !sess.Authenticated {
				log.Error().Msg("Unknown or expired session token")
				http.Error(w, "Unknown or expired session", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), SessionContextKey, sess)
			ctx = context.WithValue(ctx, TokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session injected by SessionMiddleware.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(SessionContextKey).(*session.Session)
	return sess
}

// TokenFromContext returns the raw session token for the request.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenContextKey).(string)
	return token
}
