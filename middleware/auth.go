// Package middleware provides net/http middleware that guards routes with
// an Engine. It works with any router that accepts standard middleware,
// including chi.
package middleware

import (
	"context"
	"net/http"
	"strings"

	campusauth "github.com/campuskit/campusauth"
	"github.com/campuskit/campusauth/token"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the validated claims attached by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims, ok
}

// AccessTokenCookie is the cookie consulted when no bearer header is
// present, for browser clients using the cookie token variant.
const AccessTokenCookie = "access_token"

// RequireAuth validates the access token on every request, rejecting with
// 401 on any failure. Validated claims are attached to the request context.
func RequireAuth(engine *campusauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := requestToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := engine.Validate(r.Context(), raw)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole layers a role check over RequireAuth's claims. Roles are the
// denormalized claim minted into the token; no store round-trip happens.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestToken extracts the access token from the Authorization header or,
// failing that, the access_token cookie.
func RequestToken(r *http.Request) (string, bool) {
	return requestToken(r)
}

func requestToken(r *http.Request) (string, bool) {
	if raw, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return raw, true
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	raw := value[len(bearer):]
	if raw == "" {
		return "", false
	}
	return raw, true
}
