package campusauth

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/campuskit/campusauth/internal/metrics"
	"github.com/campuskit/campusauth/token"
	"github.com/google/uuid"
)

// BeginSignup issues a signup passcode for the email. Fails with
// ErrEmailAlreadyRegistered when an active identity already owns it; a
// pending identity (earlier signup abandoned mid-flow) simply gets a fresh
// code. A deactivated identity is rejected outright: RestoreAccount is the
// only way back to the active state.
func (e *Engine) BeginSignup(ctx context.Context, email string) (*PasscodeIssue, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.metrics.Inc(metrics.MetricSignupRequest)
	email = normalizeEmail(email)

	identity, err := e.credentials.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		return nil, err
	}
	if identity != nil && identity.CanAuthenticate() {
		e.metrics.Inc(metrics.MetricSignupDuplicate)
		return nil, ErrEmailAlreadyRegistered
	}
	if identity != nil && identity.Status == StatusAccepted {
		return nil, ErrIdentityInactive
	}

	issue, err := e.issuePasscode(ctx, email, PasscodeSignup)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// VerifySignupOTP consumes the signup passcode. On success the pending
// identity is created (if absent) and a temporary token scoped to profile
// setup is returned.
func (e *Engine) VerifySignupOTP(ctx context.Context, email, otp string) (*SigninResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	if err := e.verifyPasscode(ctx, email, PasscodeSignup, otp, true); err != nil {
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
	} else if identity.Status == StatusAccepted {
		return nil, ErrIdentityInactive
	} else if !identity.Verified {
		identity.Verified = true
		if err := e.credentials.Update(ctx, identity); err != nil {
			return nil, err
		}
	}

	temp, err := e.mintTempToken(identity, token.PurposeProfileSetup)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(metrics.MetricSignupSuccess)
	e.emit(ctx, AuditEvent{
		EventType: AuditPasscodeVerified,
		SubjectID: identity.ID,
		Email:     email,
		TenantID:  identity.TenantID,
		Success:   true,
	})

	return &SigninResult{NextStep: StepProfileSetup, TempToken: temp}, nil
}

// SetupProfile finalizes a pending identity against a profile-setup
// temporary token: sets the password hash, stores profile fields, advances
// the lifecycle to active, and opens the first session. For a principal
// role the owning tenant is provisioned first.
func (e *Engine) SetupProfile(ctx context.Context, tempToken string, req ProfileSetupRequest) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, identity, err := e.decodeTempToken(ctx, tempToken, token.PurposeProfileSetup)
	if err != nil {
		return nil, err
	}
	// A temp token minted before an administrative deactivation must not
	// promote the identity back to active.
	if identity.Status == StatusAccepted {
		return nil, ErrIdentityInactive
	}

	if len(req.Password) < e.config.Security.MinPasswordLength {
		return nil, ErrPasswordPolicy
	}
	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, ErrPasswordPolicy
	}

	identity.PasswordHash = hash
	identity.FullName = req.FullName
	identity.Contact = req.Contact
	if req.Role != "" {
		identity.Role = req.Role
	}
	identity.Verified = true
	identity.Status = StatusActive
	identity.MustResetPassword = false
	identity.TemporaryPassword = false

	if identity.TenantID == "" && e.provisioner != nil && slices.Contains(e.config.PrincipalRoles, identity.Role) {
		tenantID, err := e.provisioner.Provision(ctx, identity)
		if err != nil {
			return nil, err
		}
		identity.TenantID = tenantID
	}

	if err := e.credentials.Update(ctx, identity); err != nil {
		return nil, err
	}
	e.retireTempToken(ctx, claims)

	pair, err := e.startSession(ctx, identity)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(metrics.MetricProfileSetupSuccess)
	e.emit(ctx, AuditEvent{
		EventType: AuditSignupCompleted,
		SubjectID: identity.ID,
		Email:     identity.Email,
		TenantID:  identity.TenantID,
		SessionID: pair.SessionID,
		Success:   true,
	})

	return pair, nil
}

// CheckOTP runs a non-consuming verification, used for optimistic
// client-side pre-checks before the finalizing step. The attempt is counted
// like any other; a match marks the record verified but leaves it live for
// exactly one later consuming call.
func (e *Engine) CheckOTP(ctx context.Context, email, otp string, purpose PasscodePurpose) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.verifyPasscode(ctx, normalizeEmail(email), purpose, otp, false)
}

// issuePasscode is the shared issuance step with metrics and audit.
func (e *Engine) issuePasscode(ctx context.Context, email string, purpose PasscodePurpose) (*PasscodeIssue, error) {
	issue, err := e.passcodes.Issue(ctx, email, purpose, clientIPFromContext(ctx))
	if err != nil {
		switch {
		case errors.Is(err, ErrOTPRateLimited):
			e.metrics.Inc(metrics.MetricSigninRateLimited)
		case errors.Is(err, ErrOTPDeliveryFailed):
			e.metrics.Inc(metrics.MetricOTPDeliveryFailure)
		}
		return nil, storeFault(err)
	}

	e.metrics.Inc(metrics.MetricOTPIssued)
	e.emit(ctx, AuditEvent{
		EventType: AuditPasscodeIssued,
		Email:     email,
		Success:   true,
		Metadata:  map[string]string{"purpose": string(purpose)},
	})
	return issue, nil
}

// verifyPasscode runs one counted attempt and maps the outcome to the
// error taxonomy.
func (e *Engine) verifyPasscode(ctx context.Context, email string, purpose PasscodePurpose, candidate string, consume bool) error {
	outcome, err := e.passcodes.Verify(ctx, email, purpose, candidate, clientIPFromContext(ctx), consume)
	if err != nil {
		return storeFault(err)
	}

	if verr := e.passcodes.outcomeError(outcome); verr != nil {
		switch {
		case errors.Is(verr, ErrOTPAttemptsExceeded):
			e.metrics.Inc(metrics.MetricOTPAttemptsExceeded)
		case errors.Is(verr, ErrOTPInvalid):
			e.metrics.Inc(metrics.MetricOTPInvalid)
		}
		e.emit(ctx, AuditEvent{
			EventType: AuditPasscodeRejected,
			Email:     email,
			Success:   false,
			Error:     verr.Error(),
			Metadata:  map[string]string{"purpose": string(purpose)},
		})
		return verr
	}

	e.metrics.Inc(metrics.MetricOTPVerified)
	return nil
}
