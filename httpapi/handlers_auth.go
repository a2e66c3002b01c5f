package httpapi

import (
	"net/http"

	campusauth "github.com/campuskit/campusauth"
)

type emailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type setupProfileRequest struct {
	TempToken string `json:"tempToken"`
	Password  string `json:"password"`
	FullName  string `json:"fullName"`
	Contact   string `json:"contact"`
	Role      string `json:"role"`
}

type passwordSigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetConfirmRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type resetCompleteRequest struct {
	TempToken   string `json:"tempToken"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issue, err := s.engine.BeginSignup(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "otp sent",
		"digits":    issue.Digits,
		"expiresAt": issue.ExpiresAt,
	})
}

func (s *Server) handleSignupVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.engine.VerifySignupOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nextStep":  result.NextStep,
		"tempToken": result.TempToken,
	})
}

func (s *Server) handleSetupProfile(w http.ResponseWriter, r *http.Request) {
	var req setupProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.engine.SetupProfile(r.Context(), req.TempToken, campusauth.ProfileSetupRequest{
		Password: req.Password,
		FullName: req.FullName,
		Contact:  req.Contact,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeTokenPair(w, http.StatusCreated, pair, nil)
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	challenge, err := s.engine.BeginSignin(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "otp sent",
		"exists":    challenge.Exists,
		"digits":    challenge.Digits,
		"expiresAt": challenge.ExpiresAt,
	})
}

func (s *Server) handleVerifySignin(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.engine.VerifySignin(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSigninResult(w, result)
}

func (s *Server) handlePasswordSignin(w http.ResponseWriter, r *http.Request) {
	var req passwordSigninRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.engine.PasswordSignin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSigninResult(w, result)
}

func (s *Server) writeSigninResult(w http.ResponseWriter, result *campusauth.SigninResult) {
	if result.Tokens != nil {
		s.writeTokenPair(w, http.StatusOK, result.Tokens, map[string]any{
			"nextStep": result.NextStep,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nextStep":  result.NextStep,
		"tempToken": result.TempToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if req.RefreshToken == "" {
		if cookie, err := r.Cookie(refreshCookie); err == nil {
			req.RefreshToken = cookie.Value
		}
	}
	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "refresh token required"})
		return
	}

	pair, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeTokenPair(w, http.StatusOK, pair, nil)
}

func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issue, err := s.engine.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "otp sent",
		"digits":    issue.Digits,
		"expiresAt": issue.ExpiresAt,
	})
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.engine.ConfirmPasswordReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}

func (s *Server) handlePasswordResetComplete(w http.ResponseWriter, r *http.Request) {
	var req resetCompleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.engine.CompletePasswordReset(r.Context(), req.TempToken, req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeTokenPair(w, http.StatusOK, pair, nil)
}
