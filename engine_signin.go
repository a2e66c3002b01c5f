package campusauth

import (
	"context"
	"errors"
	"time"

	"github.com/campuskit/campusauth/internal/metrics"
	"github.com/campuskit/campusauth/token"
	"github.com/google/uuid"
)

// BeginSignin issues a signin passcode. The code goes out whether or not
// the email is registered, so the endpoint cannot be used to enumerate
// accounts; only the post-verification branch differs.
func (e *Engine) BeginSignin(ctx context.Context, email string) (*SigninChallenge, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.metrics.Inc(metrics.MetricSigninRequest)
	email = normalizeEmail(email)

	identity, err := e.credentials.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		return nil, err
	}
	exists := identity != nil && identity.Verified

	issue, err := e.issuePasscode(ctx, email, PasscodeSignin)
	if err != nil {
		return nil, err
	}

	return &SigninChallenge{
		Exists:    exists,
		Digits:    issue.Digits,
		ExpiresAt: issue.ExpiresAt,
	}, nil
}

// VerifySignin consumes the signin passcode and branches on identity
// state: an unknown email becomes a pending identity routed to profile
// setup; an identity carrying a temporary password or a forced-reset flag
// gets a password-reset temporary token; a fully active identity gets a
// session and a full token pair.
func (e *Engine) VerifySignin(ctx context.Context, email, otp string) (*SigninResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	if err := e.verifyPasscode(ctx, email, PasscodeSignin, otp, true); err != nil {
		e.metrics.Inc(metrics.MetricSigninFailure)
		return nil, err
	}

	identity, err := e.credentials.FindByEmail(ctx, email)
	if errors.Is(err, ErrIdentityNotFound) {
		identity = &Identity{
			ID:        uuid.NewString(),
			Email:     email,
			Verified:  true,
			Status:    StatusPending,
			TenantID:  tenantIDFromContext(ctx),
			CreatedAt: time.Now(),
		}
		if err := e.credentials.Create(ctx, identity); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return e.postVerifyBranch(ctx, identity)
}

// PasswordSignin is the device-tracked variant: email+password with no OTP
// step. Unknown email and wrong password are indistinguishable to the
// caller.
func (e *Engine) PasswordSignin(ctx context.Context, email, passwd string) (*SigninResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.metrics.Inc(metrics.MetricSigninRequest)
	email = normalizeEmail(email)

	identity, err := e.credentials.FindByEmail(ctx, email)
	if errors.Is(err, ErrIdentityNotFound) {
		e.metrics.Inc(metrics.MetricSigninFailure)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if identity.PasswordHash == "" {
		e.metrics.Inc(metrics.MetricSigninFailure)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(passwd, identity.PasswordHash)
	if err != nil || !ok {
		e.metrics.Inc(metrics.MetricSigninFailure)
		e.emit(ctx, AuditEvent{
			EventType: AuditSigninRejected,
			SubjectID: identity.ID,
			Email:     email,
			Success:   false,
			Error:     ErrInvalidCredentials.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	return e.postVerifyBranch(ctx, identity)
}

// postVerifyBranch is the shared state-machine dispatch after the caller
// proved control of the account (OTP consumed or password verified).
func (e *Engine) postVerifyBranch(ctx context.Context, identity *Identity) (*SigninResult, error) {
	if blocked, err := e.revocations.IsSubjectBlacklisted(ctx, identity.ID); err != nil {
		if ferr := e.revocationFault(err); ferr != nil {
			return nil, ferr
		}
	} else if blocked {
		e.metrics.Inc(metrics.MetricSigninFailure)
		return nil, ErrIdentityInactive
	}

	switch {
	case identity.Status == StatusAccepted:
		e.metrics.Inc(metrics.MetricSigninFailure)
		return nil, ErrIdentityInactive

	case identity.PasswordHash == "":
		temp, err := e.mintTempToken(identity, token.PurposeProfileSetup)
		if err != nil {
			return nil, err
		}
		return &SigninResult{NextStep: StepProfileSetup, TempToken: temp}, nil

	case identity.TemporaryPassword || identity.MustResetPassword:
		temp, err := e.mintTempToken(identity, token.PurposePasswordReset)
		if err != nil {
			return nil, err
		}
		return &SigninResult{NextStep: StepPasswordReset, TempToken: temp}, nil

	case identity.Status != StatusActive:
		e.metrics.Inc(metrics.MetricSigninFailure)
		return nil, ErrIdentityInactive

	default:
		pair, err := e.startSession(ctx, identity)
		if err != nil {
			return nil, err
		}
		if err := e.credentials.RecordLogin(ctx, identity.ID, time.Now()); err != nil {
			e.logger.Warn("failed to record login timestamp", "subject", identity.ID, "error", err)
		}

		e.metrics.Inc(metrics.MetricSigninSuccess)
		e.emit(ctx, AuditEvent{
			EventType: AuditSigninSucceeded,
			SubjectID: identity.ID,
			Email:     identity.Email,
			TenantID:  identity.TenantID,
			SessionID: pair.SessionID,
			Success:   true,
		})
		return &SigninResult{NextStep: StepDone, Tokens: pair}, nil
	}
}
