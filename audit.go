package campusauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent is one security-relevant occurrence (passcode issued, signin,
// refresh, logout, revocation). Events are emitted asynchronously and must
// never carry secrets: no codes, no tokens, no hashes.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	SubjectID string            `json:"subject_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	TenantID  string            `json:"tenant_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Audit event types emitted by the engine.
const (
	AuditPasscodeIssued   = "passcode.issued"
	AuditPasscodeVerified = "passcode.verified"
	AuditPasscodeRejected = "passcode.rejected"
	AuditSignupCompleted  = "signup.completed"
	AuditSigninSucceeded  = "signin.succeeded"
	AuditSigninRejected   = "signin.rejected"
	AuditRefreshRotated   = "refresh.rotated"
	AuditRefreshReuse     = "refresh.reuse_detected"
	AuditLogout           = "session.logout"
	AuditLogoutAll        = "session.logout_all"
	AuditPasswordReset    = "password.reset"
	AuditSubjectRevoked   = "subject.revoked"
	AuditSubjectRestored  = "subject.restored"
)

// AuditSink receives events from the dispatcher. Emit must be safe for
// concurrent use and should not block longer than the caller's context
// allows.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a channel, mainly for tests and for
// callers that bridge into their own pipeline.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
