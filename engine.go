package campusauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/campuskit/campusauth/internal"
	"github.com/campuskit/campusauth/internal/metrics"
	"github.com/campuskit/campusauth/password"
	"github.com/campuskit/campusauth/revocation"
	"github.com/campuskit/campusauth/session"
	"github.com/campuskit/campusauth/token"
)

// Engine is the auth orchestrator. It owns the lifecycle of passcode
// records and sessions; durable identity fields belong to the injected
// CredentialStore. Construct through the Builder.
type Engine struct {
	config Config

	codec       *token.Codec
	sessions    *session.Store
	revocations *revocation.Store
	passcodes   *passcodeManager
	hasher      *password.Hasher

	credentials CredentialStore
	provisioner TenantProvisioner

	metrics *metrics.Metrics
	audit   *auditDispatcher
	logger  *slog.Logger

	closed atomic.Bool
}

// Close stops the audit dispatcher after draining buffered events. The
// engine rejects all calls afterwards.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.audit.Close()
}

func (e *Engine) ready() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return nil
}

// Validate is the hot path gating every authenticated request: decode the
// access token (pure), then consult the revocation ledger for both the
// subject and the individual token id. In ModeStrict the embedded session
// must also still exist.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*token.Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { e.metrics.ObserveLatency(time.Since(start)) }()

	claims, err := e.codec.Decode(accessToken)
	if err != nil {
		return nil, err
	}
	if err := claims.Require(token.KindAccess, token.PurposeNone); err != nil {
		return nil, err
	}

	if err := e.checkRevoked(ctx, claims.Subject, claims.ID); err != nil {
		return nil, err
	}

	if e.config.Security.ValidationMode == ModeStrict && claims.SessionID != "" {
		if _, err := e.sessions.Get(ctx, claims.TenantID, claims.SessionID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, storeFault(err)
		}
	}

	return claims, nil
}

// checkRevoked consults the ledger under the configured failure mode. A
// reachable ledger with a hit always wins; an unreachable ledger either
// passes (FailOpen, counted) or rejects (FailClosed).
func (e *Engine) checkRevoked(ctx context.Context, subjectID, jti string) error {
	blacklisted, err := e.revocations.IsSubjectBlacklisted(ctx, subjectID)
	if err != nil {
		return e.revocationFault(err)
	}
	if blacklisted {
		e.metrics.Inc(metrics.MetricTokenRevokedHit)
		return ErrTokenRevoked
	}

	if jti == "" {
		return nil
	}
	revoked, err := e.revocations.IsTokenRevoked(ctx, jti)
	if err != nil {
		return e.revocationFault(err)
	}
	if revoked {
		e.metrics.Inc(metrics.MetricTokenRevokedHit)
		return ErrTokenRevoked
	}
	return nil
}

func (e *Engine) revocationFault(err error) error {
	if e.config.Revocation.FailureMode == FailClosed {
		return storeFault(err)
	}
	e.metrics.Inc(metrics.MetricRevocationFailOpen)
	e.logger.Warn("revocation ledger unreachable, failing open", "error", err)
	return nil
}

// startSession allocates a session for the identity, mints the bound
// refresh token first (its fingerprint is part of the session record), then
// the access token.
func (e *Engine) startSession(ctx context.Context, identity *Identity) (*TokenPair, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	sessionID := sid.String()

	refreshRaw, _, err := e.codec.Mint(token.MintRequest{
		Subject:   identity.ID,
		Kind:      token.KindRefresh,
		SessionID: sessionID,
		Role:      identity.Role,
		TenantID:  identity.TenantID,
	})
	if err != nil {
		return nil, err
	}

	accessRaw, _, err := e.codec.Mint(token.MintRequest{
		Subject:   identity.ID,
		Kind:      token.KindAccess,
		SessionID: sessionID,
		Role:      identity.Role,
		TenantID:  identity.TenantID,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &session.Session{
		ID:          sessionID,
		SubjectID:   identity.ID,
		TenantID:    identity.TenantID,
		Role:        identity.Role,
		Device:      session.DescribeUserAgent(userAgentFromContext(ctx)),
		IP:          clientIPFromContext(ctx),
		Fingerprint: internal.FingerprintHex(refreshRaw),
		CreatedAt:   now.Unix(),
		LastUsedAt:  now.Unix(),
		ExpiresAt:   now.Add(e.config.Session.TTL).Unix(),
	}
	if err := e.sessions.Save(ctx, sess, e.config.Session.TTL); err != nil {
		return nil, storeFault(err)
	}
	e.metrics.Inc(metrics.MetricSessionCreated)

	return &TokenPair{
		AccessToken:      accessRaw,
		RefreshToken:     refreshRaw,
		SessionID:        sessionID,
		AccessExpiresAt:  now.Add(e.config.Token.AccessTTL),
		RefreshExpiresAt: now.Add(e.config.Token.RefreshTTL),
	}, nil
}

// mintTempToken issues a purpose-scoped temporary token.
func (e *Engine) mintTempToken(identity *Identity, purpose token.Purpose) (string, error) {
	raw, _, err := e.codec.Mint(token.MintRequest{
		Subject:  identity.ID,
		Kind:     token.KindTemporary,
		Role:     identity.Role,
		TenantID: identity.TenantID,
		Purpose:  purpose,
	})
	return raw, err
}

// decodeTempToken validates kind, purpose and revocation for a mid-flow
// temporary token and loads its identity.
func (e *Engine) decodeTempToken(ctx context.Context, raw string, purpose token.Purpose) (*token.Claims, *Identity, error) {
	claims, err := e.codec.Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	if err := claims.Require(token.KindTemporary, purpose); err != nil {
		return nil, nil, err
	}
	if err := e.checkRevoked(ctx, claims.Subject, claims.ID); err != nil {
		return nil, nil, err
	}

	identity, err := e.credentials.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, nil, err
	}
	return claims, identity, nil
}

// retireTempToken makes a consumed temporary token single-use by shadowing
// its jti until natural expiry. Best effort; the flow already succeeded.
func (e *Engine) retireTempToken(ctx context.Context, claims *token.Claims) {
	ttl := claims.RemainingTTL(time.Now())
	if ttl <= 0 {
		return
	}
	if err := e.revocations.RevokeToken(ctx, claims.ID, "consumed", ttl); err != nil {
		e.logger.Warn("failed to retire temporary token", "error", err)
	}
}

func (e *Engine) emit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	event.Timestamp = time.Now()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
