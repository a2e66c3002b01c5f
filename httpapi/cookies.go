package httpapi

import (
	"net/http"
	"time"

	campusauth "github.com/campuskit/campusauth"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// setTokenCookies installs the pair as HTTP-only, secure, strict-samesite
// cookies. The refresh cookie is scoped to the refresh endpoint.
func (s *Server) setTokenCookies(w http.ResponseWriter, pair *campusauth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   s.config.CookieDomain,
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/auth/session/refresh",
		Domain:   s.config.CookieDomain,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearTokenCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{
		Name: accessCookie, Value: "", Path: "/", Domain: s.config.CookieDomain,
		Expires: expired, HttpOnly: true, Secure: true, SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name: refreshCookie, Value: "", Path: "/auth/session/refresh", Domain: s.config.CookieDomain,
		Expires: expired, HttpOnly: true, Secure: true, SameSite: http.SameSiteStrictMode,
	})
}

// tokenPairResponse is the body-mode rendering of a pair. In cookie mode
// only the session id is echoed.
func (s *Server) writeTokenPair(w http.ResponseWriter, status int, pair *campusauth.TokenPair, extra map[string]any) {
	body := map[string]any{
		"sessionId": pair.SessionID,
	}
	if s.config.CookieMode {
		s.setTokenCookies(w, pair)
	} else {
		body["accessToken"] = pair.AccessToken
		body["refreshToken"] = pair.RefreshToken
		body["accessExpiresAt"] = pair.AccessExpiresAt
		body["refreshExpiresAt"] = pair.RefreshExpiresAt
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}
