package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campuskit/campusauth/middleware"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.RequestToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "missing access token"})
		return
	}

	sessions, err := s.engine.ListSessions(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, map[string]any{
			"sessionId":  sess.SessionID,
			"device":     sess.Device,
			"ip":         sess.IP,
			"createdAt":  sess.CreatedAt,
			"lastUsedAt": sess.LastUsedAt,
			"expiresAt":  sess.ExpiresAt,
			"isCurrent":  sess.IsCurrent,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.RequestToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "missing access token"})
		return
	}

	if err := s.engine.Logout(r.Context(), raw); err != nil {
		writeError(w, err)
		return
	}
	if s.config.CookieMode {
		s.clearTokenCookies(w)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

func (s *Server) handleLogoutSession(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.RequestToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "missing access token"})
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.engine.LogoutSession(r.Context(), raw, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session removed"})
}

// handleLogoutAll removes every other session; the caller's own survives.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.RequestToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "missing access token"})
		return
	}

	removed, err := s.engine.LogoutAll(r.Context(), raw, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "admin_deactivated"
	}

	if err := s.engine.DeactivateAccount(r.Context(), subjectID, reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deactivated"})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	if err := s.engine.RestoreAccount(r.Context(), subjectID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account restored"})
}
