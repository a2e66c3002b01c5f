package campusauth

import (
	"context"
	"errors"
	"time"

	"github.com/campuskit/campusauth/internal/metrics"
	"github.com/campuskit/campusauth/session"
	"github.com/campuskit/campusauth/token"
)

// Logout ends the caller's own session and shadows the presented access
// token for its remaining lifetime, so it stops working before natural
// expiry. Idempotent: a second call with the same token succeeds.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.validateForSessionOps(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := e.sessions.Delete(ctx, claims.TenantID, claims.Subject, claims.SessionID); err != nil {
		return storeFault(err)
	}
	e.shadowAccessToken(ctx, claims)

	e.metrics.Inc(metrics.MetricLogout)
	e.metrics.Inc(metrics.MetricSessionInvalidated)
	e.emit(ctx, AuditEvent{
		EventType: AuditLogout,
		SubjectID: claims.Subject,
		TenantID:  claims.TenantID,
		SessionID: claims.SessionID,
		Success:   true,
	})
	return nil
}

// LogoutSession ends one named session belonging to the caller. Fails with
// ErrSessionNotFound when the id does not resolve or belongs to another
// subject.
func (e *Engine) LogoutSession(ctx context.Context, accessToken, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.validateForSessionOps(ctx, accessToken)
	if err != nil {
		return err
	}

	target, err := e.sessions.Get(ctx, claims.TenantID, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return storeFault(err)
	}
	if target.SubjectID != claims.Subject {
		// Ownership failures are indistinguishable from absence.
		return ErrSessionNotFound
	}

	if err := e.sessions.Delete(ctx, claims.TenantID, claims.Subject, sessionID); err != nil {
		return storeFault(err)
	}
	if sessionID == claims.SessionID {
		e.shadowAccessToken(ctx, claims)
	}

	e.metrics.Inc(metrics.MetricLogout)
	e.metrics.Inc(metrics.MetricSessionInvalidated)
	e.emit(ctx, AuditEvent{
		EventType: AuditLogout,
		SubjectID: claims.Subject,
		TenantID:  claims.TenantID,
		SessionID: sessionID,
		Success:   true,
	})
	return nil
}

// LogoutAll ends every session for the caller. With keepCurrent the
// session embedded in the access token survives, which is the
// "sign out everywhere else" device-management action.
func (e *Engine) LogoutAll(ctx context.Context, accessToken string, keepCurrent bool) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	claims, err := e.validateForSessionOps(ctx, accessToken)
	if err != nil {
		return 0, err
	}

	keep := ""
	if keepCurrent {
		keep = claims.SessionID
	}

	removed, err := e.sessions.DeleteAllForSubject(ctx, claims.TenantID, claims.Subject, keep)
	if err != nil {
		return 0, storeFault(err)
	}
	if !keepCurrent {
		e.shadowAccessToken(ctx, claims)
	}

	e.metrics.Inc(metrics.MetricLogoutAll)
	for i := 0; i < removed; i++ {
		e.metrics.Inc(metrics.MetricSessionInvalidated)
	}
	e.emit(ctx, AuditEvent{
		EventType: AuditLogoutAll,
		SubjectID: claims.Subject,
		TenantID:  claims.TenantID,
		SessionID: claims.SessionID,
		Success:   true,
		Metadata:  map[string]string{"kept_current": boolString(keepCurrent)},
	})
	return removed, nil
}

// validateForSessionOps decodes and revocation-checks an access token for
// session-management calls. It does not require the session to still exist;
// logout of an already-dead session is a no-op, not an error.
func (e *Engine) validateForSessionOps(ctx context.Context, accessToken string) (*token.Claims, error) {
	claims, err := e.codec.Decode(accessToken)
	if err != nil {
		return nil, err
	}
	if err := claims.Require(token.KindAccess, token.PurposeNone); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrTokenMalformed
	}
	if err := e.checkRevoked(ctx, claims.Subject, claims.ID); err != nil {
		return nil, err
	}
	return claims, nil
}

// shadowAccessToken blacklists the token's jti for its remaining lifetime.
// Best effort; session deletion already succeeded.
func (e *Engine) shadowAccessToken(ctx context.Context, claims *token.Claims) {
	ttl := claims.RemainingTTL(time.Now())
	if ttl <= 0 || claims.ID == "" {
		return
	}
	if err := e.revocations.RevokeToken(ctx, claims.ID, "logout", ttl); err != nil {
		e.logger.Warn("failed to shadow access token on logout", "error", err)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
