package campusauth

import (
	"context"
	"errors"
	"time"

	"github.com/campuskit/campusauth/internal"
	"github.com/campuskit/campusauth/internal/metrics"
	"github.com/campuskit/campusauth/session"
	"github.com/campuskit/campusauth/token"
)

// Refresh exchanges a refresh token for a rotated pair. Rotation is
// mandatory: the presented token's fingerprint must match the session's
// registered one, and exactly one of any concurrent callers can win the
// swap. A mismatch means the token was already rotated away; the session
// is destroyed as a reuse precaution and the caller gets
// ErrStaleRefreshToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.codec.Decode(refreshToken)
	if err != nil {
		e.metrics.Inc(metrics.MetricRefreshFailure)
		return nil, err
	}
	if err := claims.Require(token.KindRefresh, token.PurposeNone); err != nil {
		e.metrics.Inc(metrics.MetricRefreshFailure)
		return nil, err
	}
	if claims.SessionID == "" {
		e.metrics.Inc(metrics.MetricRefreshFailure)
		return nil, ErrTokenMalformed
	}

	if err := e.checkRevoked(ctx, claims.Subject, claims.ID); err != nil {
		e.metrics.Inc(metrics.MetricRefreshFailure)
		return nil, err
	}

	// The replacement refresh token is minted before the swap so its
	// fingerprint can be registered atomically with the rotation. If the
	// swap loses, the minted string is discarded unregistered and can
	// never be redeemed.
	nextRefresh, _, err := e.codec.Mint(token.MintRequest{
		Subject:   claims.Subject,
		Kind:      token.KindRefresh,
		SessionID: claims.SessionID,
		Role:      claims.Role,
		TenantID:  claims.TenantID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rotated, err := e.sessions.Rotate(
		ctx,
		claims.TenantID, claims.Subject, claims.SessionID,
		internal.FingerprintHex(refreshToken),
		internal.FingerprintHex(nextRefresh),
		now,
	)
	if err != nil {
		e.metrics.Inc(metrics.MetricRefreshFailure)
		switch {
		case errors.Is(err, session.ErrNotFound):
			return nil, ErrSessionNotFound
		case errors.Is(err, session.ErrFingerprintMismatch):
			e.metrics.Inc(metrics.MetricRefreshReuseDetected)
			e.metrics.Inc(metrics.MetricSessionInvalidated)
			e.emit(ctx, AuditEvent{
				EventType: AuditRefreshReuse,
				SubjectID: claims.Subject,
				TenantID:  claims.TenantID,
				SessionID: claims.SessionID,
				Success:   false,
				Error:     ErrStaleRefreshToken.Error(),
			})
			return nil, ErrStaleRefreshToken
		default:
			return nil, storeFault(err)
		}
	}

	access, _, err := e.codec.Mint(token.MintRequest{
		Subject:   rotated.SubjectID,
		Kind:      token.KindAccess,
		SessionID: rotated.ID,
		Role:      rotated.Role,
		TenantID:  rotated.TenantID,
	})
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(metrics.MetricRefreshSuccess)
	e.emit(ctx, AuditEvent{
		EventType: AuditRefreshRotated,
		SubjectID: rotated.SubjectID,
		TenantID:  rotated.TenantID,
		SessionID: rotated.ID,
		Success:   true,
	})

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     nextRefresh,
		SessionID:        rotated.ID,
		AccessExpiresAt:  now.Add(e.config.Token.AccessTTL),
		RefreshExpiresAt: now.Add(e.config.Token.RefreshTTL),
	}, nil
}
