package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campuskit/campusauth/token"
)

func withClaims(r *http.Request, claims *token.Claims) context.Context {
	return context.WithValue(r.Context(), claimsContextKey{}, claims)
}

func TestRequestTokenSources(t *testing.T) {
	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc123")

		raw, ok := RequestToken(r)
		if !ok || raw != "abc123" {
			t.Fatalf("expected bearer token, got %q ok=%v", raw, ok)
		}
	})

	t.Run("cookie fallback", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie-token"})

		raw, ok := RequestToken(r)
		if !ok || raw != "cookie-token" {
			t.Fatalf("expected cookie token, got %q ok=%v", raw, ok)
		}
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer from-header")
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "from-cookie"})

		raw, _ := RequestToken(r)
		if raw != "from-header" {
			t.Fatalf("expected header token to win, got %q", raw)
		}
	})

	t.Run("missing or malformed", func(t *testing.T) {
		for _, header := range []string{"", "Bearer ", "Basic abc", "bearer abc"} {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			if _, ok := RequestToken(r); ok {
				t.Fatalf("expected no token for header %q", header)
			}
		}
	})
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRole("admin", "owner")(next)

	t.Run("no claims in context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong role", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(withClaims(r, &token.Claims{Role: "staff"}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("allowed role", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(withClaims(r, &token.Claims{Role: "admin"}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})
}

func TestRequireAuthNilEngine(t *testing.T) {
	handler := RequireAuth(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
