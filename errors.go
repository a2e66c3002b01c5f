package campusauth

import (
	"errors"
	"fmt"

	"github.com/campuskit/campusauth/revocation"
	"github.com/campuskit/campusauth/session"
	"github.com/campuskit/campusauth/token"
)

// Every engine operation fails with one of the sentinels below (possibly
// wrapped with detail). Callers branch with errors.Is; the HTTP layer maps
// each sentinel to a stable machine-readable code.
var (
	// ErrOTPExpired means no live passcode record exists for the email.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPAttemptsExceeded means the attempt counter reached its bound.
	// The record is spent; a fresh passcode must be issued.
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	// ErrOTPInvalid means the candidate did not match the stored code.
	ErrOTPInvalid = errors.New("otp invalid")
	// ErrOTPPurposeMismatch means a live record exists but was issued for a
	// different flow (signup code presented to password reset, etc).
	ErrOTPPurposeMismatch = errors.New("otp purpose mismatch")
	// ErrOTPRateLimited means too many passcodes were requested for the
	// email inside the issue window.
	ErrOTPRateLimited = errors.New("otp rate limited")
	// ErrOTPDeliveryFailed means the out-of-band sender failed; the stored
	// record has been rolled back.
	ErrOTPDeliveryFailed = errors.New("otp delivery failed")

	// ErrTokenExpired aliases the codec sentinel so callers only need one
	// import to branch on engine failures.
	ErrTokenExpired = token.ErrExpired
	// ErrTokenMalformed aliases the codec's structural/signature failure.
	ErrTokenMalformed = token.ErrMalformed
	// ErrTokenKindMismatch aliases the codec's kind/purpose check failure.
	ErrTokenKindMismatch = token.ErrKindMismatch
	// ErrTokenRevoked means the subject or the specific token is present in
	// the revocation ledger.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrSessionNotFound means the session id no longer resolves (logged
	// out, expired, or cascade-invalidated).
	ErrSessionNotFound = errors.New("session not found")
	// ErrStaleRefreshToken means the presented refresh token was already
	// rotated away. The session has been destroyed as a reuse precaution.
	ErrStaleRefreshToken = errors.New("stale refresh token")

	// ErrIdentityNotFound means no identity record matches.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrIdentityInactive means the identity exists but its lifecycle state
	// does not permit authentication.
	ErrIdentityInactive = errors.New("identity inactive")
	// ErrEmailAlreadyRegistered means signup was attempted for an email
	// that already belongs to an active identity.
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrInvalidCredentials means the email/password pair did not match.
	// Deliberately indistinguishable between unknown email and wrong
	// password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordPolicy means the candidate password failed policy checks.
	ErrPasswordPolicy = errors.New("password does not meet policy")

	// ErrStoreUnavailable wraps infrastructure faults from the cache or
	// the credential store. Surfaced as 5xx, never as an auth failure.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("engine closed")
)

// storeFault folds the per-package unavailability sentinels into
// ErrStoreUnavailable so callers see a single infrastructure error.
func storeFault(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, revocation.ErrRedisUnavailable),
		errors.Is(err, errPasscodeRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
