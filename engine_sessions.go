package campusauth

import (
	"context"
	"sort"
	"time"
)

// ListSessions returns every live session for the caller, newest first,
// with the one embedded in the presented access token flagged as current.
func (e *Engine) ListSessions(ctx context.Context, accessToken string) ([]SessionSummary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.validateForSessionOps(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	sessions, err := e.sessions.ListForSubject(ctx, claims.TenantID, claims.Subject)
	if err != nil {
		return nil, storeFault(err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt > sessions[j].CreatedAt
	})

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			SessionID:  s.ID,
			Device:     s.Device,
			IP:         s.IP,
			CreatedAt:  time.Unix(s.CreatedAt, 0),
			LastUsedAt: time.Unix(s.LastUsedAt, 0),
			ExpiresAt:  time.Unix(s.ExpiresAt, 0),
			IsCurrent:  s.ID == claims.SessionID,
		})
	}
	return summaries, nil
}

// ActiveSessionCount reports how many sessions a subject currently holds.
func (e *Engine) ActiveSessionCount(ctx context.Context, tenantID, subjectID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	n, err := e.sessions.ActiveCount(ctx, tenantID, subjectID)
	if err != nil {
		return 0, storeFault(err)
	}
	return n, nil
}
