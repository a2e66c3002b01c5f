package campusauth

import (
	"context"

	"github.com/campuskit/campusauth/internal/metrics"
	"github.com/campuskit/campusauth/token"
)

// RequestPasswordReset issues a reset passcode. Like BeginSignin, the code
// goes out regardless of whether the email is registered; an unknown email
// only surfaces after a correct code is presented.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*PasscodeIssue, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.metrics.Inc(metrics.MetricPasswordResetRequest)
	return e.issuePasscode(ctx, normalizeEmail(email), PasscodeReset)
}

// ConfirmPasswordReset consumes the reset passcode and installs the new
// password. Every session for the subject is invalidated; the caller signs
// in again with the new credential.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, otp, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = normalizeEmail(email)

	if err := e.verifyPasscode(ctx, email, PasscodeReset, otp, true); err != nil {
		return err
	}

	identity, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	return e.resetPassword(ctx, identity, newPassword)
}

// CompletePasswordReset is the temporary-token branch used when
// VerifySignin routed an invited or must-reset identity here. On success
// the identity becomes fully active and a fresh session is opened.
func (e *Engine) CompletePasswordReset(ctx context.Context, tempToken, newPassword string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, identity, err := e.decodeTempToken(ctx, tempToken, token.PurposePasswordReset)
	if err != nil {
		return nil, err
	}
	if identity.Status == StatusAccepted {
		return nil, ErrIdentityInactive
	}

	if err := e.resetPassword(ctx, identity, newPassword); err != nil {
		return nil, err
	}
	e.retireTempToken(ctx, claims)

	return e.startSession(ctx, identity)
}

// resetPassword is the shared mutation: hash, clear the reset flags,
// persist, cascade-invalidate sessions.
func (e *Engine) resetPassword(ctx context.Context, identity *Identity, newPassword string) error {
	if len(newPassword) < e.config.Security.MinPasswordLength {
		return ErrPasswordPolicy
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return ErrPasswordPolicy
	}

	identity.PasswordHash = hash
	identity.MustResetPassword = false
	identity.TemporaryPassword = false
	if identity.Status == StatusPending && identity.Verified {
		identity.Status = StatusActive
	}

	if err := e.credentials.Update(ctx, identity); err != nil {
		return err
	}

	removed, err := e.sessions.DeleteAllForSubject(ctx, identity.TenantID, identity.ID, "")
	if err != nil {
		// The new hash is already committed at this point. Old sessions
		// must not outlive the reset, so the cascade fault fails the call.
		e.logger.Warn("failed to cascade sessions after password reset", "subject", identity.ID, "error", err)
		return storeFault(err)
	}
	for i := 0; i < removed; i++ {
		e.metrics.Inc(metrics.MetricSessionInvalidated)
	}

	e.metrics.Inc(metrics.MetricPasswordResetSuccess)
	e.emit(ctx, AuditEvent{
		EventType: AuditPasswordReset,
		SubjectID: identity.ID,
		Email:     identity.Email,
		TenantID:  identity.TenantID,
		Success:   true,
	})
	return nil
}
