package campusauth

import (
	"context"
	"time"

	"github.com/campuskit/campusauth/internal/metrics"
)

// DeactivateAccount is the administrative kill switch: the subject is
// blacklisted so every outstanding token fails validation immediately, all
// sessions are destroyed, and the durable record drops out of the active
// state. Takes effect before any outstanding access token expires.
func (e *Engine) DeactivateAccount(ctx context.Context, subjectID, reason string) error {
	if err := e.ready(); err != nil {
		return err
	}

	identity, err := e.credentials.FindByID(ctx, subjectID)
	if err != nil {
		return err
	}

	if err := e.revocations.BlacklistSubject(ctx, subjectID, reason, e.config.Revocation.DefaultTTL); err != nil {
		return storeFault(err)
	}

	removed, err := e.sessions.DeleteAllForSubject(ctx, identity.TenantID, subjectID, "")
	if err != nil {
		e.logger.Warn("failed to cascade sessions on deactivation", "subject", subjectID, "error", err)
	}
	for i := 0; i < removed; i++ {
		e.metrics.Inc(metrics.MetricSessionInvalidated)
	}

	if identity.Status == StatusActive {
		identity.Status = StatusAccepted
		if err := e.credentials.Update(ctx, identity); err != nil {
			return err
		}
	}

	e.metrics.Inc(metrics.MetricSubjectBlacklisted)
	e.emit(ctx, AuditEvent{
		EventType: AuditSubjectRevoked,
		SubjectID: subjectID,
		TenantID:  identity.TenantID,
		Success:   true,
		Metadata:  map[string]string{"reason": reason},
	})
	return nil
}

// RestoreAccount reverses DeactivateAccount: removes the blacklist entry
// and returns the identity to the active state. Destroyed sessions stay
// destroyed; the subject signs in again.
func (e *Engine) RestoreAccount(ctx context.Context, subjectID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	identity, err := e.credentials.FindByID(ctx, subjectID)
	if err != nil {
		return err
	}

	if err := e.revocations.UnblacklistSubject(ctx, subjectID); err != nil {
		return storeFault(err)
	}

	if identity.Status == StatusAccepted && identity.PasswordHash != "" {
		identity.Status = StatusActive
		if err := e.credentials.Update(ctx, identity); err != nil {
			return err
		}
	}

	e.metrics.Inc(metrics.MetricSubjectRestored)
	e.emit(ctx, AuditEvent{
		EventType: AuditSubjectRestored,
		SubjectID: subjectID,
		TenantID:  identity.TenantID,
		Success:   true,
	})
	return nil
}

// RevokeToken shadows one specific token (by decoding it) for its
// remaining lifetime without touching the subject's other tokens.
func (e *Engine) RevokeToken(ctx context.Context, raw, reason string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.codec.Decode(raw)
	if err != nil {
		return err
	}
	ttl := claims.RemainingTTL(time.Now())
	if ttl <= 0 || claims.ID == "" {
		return nil
	}
	if err := e.revocations.RevokeToken(ctx, claims.ID, reason, ttl); err != nil {
		return storeFault(err)
	}
	return nil
}

// IsSubjectBlacklisted exposes the ledger lookup for callers that gate
// non-token operations on revocation state.
func (e *Engine) IsSubjectBlacklisted(ctx context.Context, subjectID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	blocked, err := e.revocations.IsSubjectBlacklisted(ctx, subjectID)
	if err != nil {
		return false, storeFault(err)
	}
	return blocked, nil
}
