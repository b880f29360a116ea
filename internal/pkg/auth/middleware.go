/*
Package auth extracts the caller's identity from bearer session tokens.

The middleware resolves the Authorization header through the session resolver
and injects the resulting user into the request context. It does not reject
requests itself; protected handlers respond unauthorized when the context
carries no identity.
*/
package auth

import (
	"context"
	"net/http"
	"strings"

	"dmchat/internal/app/store"
	"dmchat/internal/pkg/errs"
)

// TokenResolver maps an opaque bearer token to its user, failing closed.
type TokenResolver interface {
	ResolveToken(token string) (store.User, *errs.CustomError)
}

// Context keys for the resolved identity, preventing collisions with other packages.
type contextKey string

const (
	contextUserKey  contextKey = "auth_user"
	contextTokenKey contextKey = "auth_token"
)

// IdentityExtractorMiddleware attempts to resolve the bearer token from the
// Authorization header. On success it injects the user and token into the
// request context; on a missing, malformed, or unresolvable token the request
// continues anonymously.
func IdentityExtractorMiddleware(resolver TokenResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			u, customErr := resolver.ResolveToken(token)
			if customErr != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, u)
			ctx = context.WithValue(ctx, contextTokenKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

// UserFromContext returns the authenticated user, or false when the request
// is anonymous.
func UserFromContext(r *http.Request) (store.User, bool) {
	u, ok := r.Context().Value(contextUserKey).(store.User)
	return u, ok
}

// TokenFromContext returns the bearer token the identity was resolved from.
func TokenFromContext(r *http.Request) string {
	token, _ := r.Context().Value(contextTokenKey).(string)
	return token
}
