package internaldefs

import (
	campusauth "github.com/campuskit/campusauth"
)

// CounterDef maps one engine counter to an exposition name.
type CounterDef struct {
	ID   campusauth.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to an exposition name.
type HistogramDef struct {
	ID   campusauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: campusauth.MetricSigninRequest, Name: "campusauth_signin_request_total", Help: "Signin flow starts."},
	{ID: campusauth.MetricSigninSuccess, Name: "campusauth_signin_success_total", Help: "Completed signins with full token issuance."},
	{ID: campusauth.MetricSigninFailure, Name: "campusauth_signin_failure_total", Help: "Rejected signin attempts."},
	{ID: campusauth.MetricSigninRateLimited, Name: "campusauth_signin_rate_limited_total", Help: "Rate-limited signin or passcode requests."},
	{ID: campusauth.MetricSignupRequest, Name: "campusauth_signup_request_total", Help: "Signup flow starts."},
	{ID: campusauth.MetricSignupSuccess, Name: "campusauth_signup_success_total", Help: "Signup passcodes verified."},
	{ID: campusauth.MetricSignupDuplicate, Name: "campusauth_signup_duplicate_total", Help: "Signup attempts for already-registered emails."},
	{ID: campusauth.MetricProfileSetupSuccess, Name: "campusauth_profile_setup_success_total", Help: "Completed profile setups."},
	{ID: campusauth.MetricOTPIssued, Name: "campusauth_otp_issued_total", Help: "Issued passcodes."},
	{ID: campusauth.MetricOTPDeliveryFailure, Name: "campusauth_otp_delivery_failure_total", Help: "Passcode deliveries that failed and were rolled back."},
	{ID: campusauth.MetricOTPVerified, Name: "campusauth_otp_verified_total", Help: "Successful passcode verifications."},
	{ID: campusauth.MetricOTPInvalid, Name: "campusauth_otp_invalid_total", Help: "Passcode attempts with a wrong code."},
	{ID: campusauth.MetricOTPAttemptsExceeded, Name: "campusauth_otp_attempts_exceeded_total", Help: "Passcode records spent by the attempt cap."},
	{ID: campusauth.MetricRefreshSuccess, Name: "campusauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: campusauth.MetricRefreshFailure, Name: "campusauth_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: campusauth.MetricRefreshReuseDetected, Name: "campusauth_refresh_reuse_detected_total", Help: "Superseded refresh tokens presented after rotation."},
	{ID: campusauth.MetricSessionCreated, Name: "campusauth_session_created_total", Help: "Created sessions."},
	{ID: campusauth.MetricSessionInvalidated, Name: "campusauth_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: campusauth.MetricLogout, Name: "campusauth_logout_total", Help: "Single-session logouts."},
	{ID: campusauth.MetricLogoutAll, Name: "campusauth_logout_all_total", Help: "Logout-all operations."},
	{ID: campusauth.MetricPasswordResetRequest, Name: "campusauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: campusauth.MetricPasswordResetSuccess, Name: "campusauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: campusauth.MetricSubjectBlacklisted, Name: "campusauth_subject_blacklisted_total", Help: "Subjects added to the revocation ledger."},
	{ID: campusauth.MetricSubjectRestored, Name: "campusauth_subject_restored_total", Help: "Subjects removed from the revocation ledger."},
	{ID: campusauth.MetricTokenRevokedHit, Name: "campusauth_token_revoked_hit_total", Help: "Validations rejected by the revocation ledger."},
	{ID: campusauth.MetricRevocationFailOpen, Name: "campusauth_revocation_fail_open_total", Help: "Ledger lookups that failed open during an outage."},
}

var HistogramDefs = []HistogramDef{
	{ID: campusauth.MetricValidateLatency, Name: "campusauth_validate_latency_us", Help: "Validate latency histogram in microseconds."},
}

// HistogramBounds are the exposition labels for the bucket upper bounds in
// microseconds.
var HistogramBounds = []string{
	"50",
	"100",
	"250",
	"500",
	"1000",
	"2500",
	"10000",
	"+Inf",
}

// HistogramBoundSuffix names each bucket in instrument-safe form.
var HistogramBoundSuffix = []string{
	"50",
	"100",
	"250",
	"500",
	"1000",
	"2500",
	"10000",
	"inf",
}

// CumulativeBuckets folds per-bucket counts into the cumulative form
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
