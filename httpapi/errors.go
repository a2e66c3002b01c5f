package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	campusauth "github.com/campuskit/campusauth"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// Order matters: the first errors.Is match wins. More specific sentinels
// come before broader ones.
var errorMappings = []errorMapping{
	{campusauth.ErrOTPAttemptsExceeded, http.StatusTooManyRequests, "otp_attempts_exceeded"},
	{campusauth.ErrOTPRateLimited, http.StatusTooManyRequests, "otp_rate_limited"},
	{campusauth.ErrOTPExpired, http.StatusBadRequest, "otp_expired"},
	{campusauth.ErrOTPPurposeMismatch, http.StatusBadRequest, "otp_purpose_mismatch"},
	{campusauth.ErrOTPInvalid, http.StatusBadRequest, "otp_invalid"},
	{campusauth.ErrOTPDeliveryFailed, http.StatusBadGateway, "otp_delivery_failed"},
	{campusauth.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{campusauth.ErrTokenKindMismatch, http.StatusUnauthorized, "token_kind_mismatch"},
	{campusauth.ErrTokenRevoked, http.StatusUnauthorized, "token_revoked"},
	{campusauth.ErrTokenMalformed, http.StatusUnauthorized, "token_malformed"},
	{campusauth.ErrStaleRefreshToken, http.StatusUnauthorized, "stale_refresh_token"},
	{campusauth.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{campusauth.ErrIdentityNotFound, http.StatusNotFound, "identity_not_found"},
	{campusauth.ErrIdentityInactive, http.StatusForbidden, "identity_inactive"},
	{campusauth.ErrEmailAlreadyRegistered, http.StatusConflict, "email_already_registered"},
	{campusauth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{campusauth.ErrPasswordPolicy, http.StatusBadRequest, "password_policy"},
}

// writeError maps engine sentinels to stable machine-readable codes.
// Infrastructure faults become 503 and must already be logged upstream.
func writeError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			writeJSON(w, m.status, errorBody{Code: m.code, Message: err.Error()})
			return
		}
	}
	if errors.Is(err, campusauth.ErrStoreUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Code:    "store_unavailable",
			Message: "backing store unavailable",
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Code:    "internal",
		Message: "internal error",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "invalid JSON body"})
		return false
	}
	return true
}
