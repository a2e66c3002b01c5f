package campusauth

import (
	"context"
	"fmt"
	"time"

	"github.com/campuskit/campusauth/internal"
)

// passcodeManager owns the passcode lifecycle: generate, store, deliver,
// verify. Delivery failure triggers compensating deletion so a code is
// never live without a delivered copy.
type passcodeManager struct {
	store   *passcodeStore
	limiter *passcodeLimiter
	sender  PasscodeSender
	config  PasscodeConfig
}

func newPasscodeManager(store *passcodeStore, limiter *passcodeLimiter, sender PasscodeSender, cfg PasscodeConfig) *passcodeManager {
	return &passcodeManager{store: store, limiter: limiter, sender: sender, config: cfg}
}

// Issue generates a fresh code and overwrites any prior record for the
// email. The code leaves the process only through the sender.
func (m *passcodeManager) Issue(ctx context.Context, email string, purpose PasscodePurpose, clientIP string) (*PasscodeIssue, error) {
	if err := m.limiter.CheckIssue(ctx, email, clientIP); err != nil {
		return nil, err
	}

	code, err := internal.NewOTP(m.config.Digits)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := &passcodeRecord{
		CodeHash:  internal.HashSecretHex(code),
		Purpose:   purpose,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(m.config.TTL).Unix(),
	}
	if m.config.BindIP {
		record.IP = clientIP
	}

	if err := m.store.Save(ctx, email, record, m.config.TTL); err != nil {
		return nil, err
	}

	if err := m.sender.Send(ctx, email, code, purpose); err != nil {
		// Roll back so no undeliverable code stays valid. A failed delete
		// leaves the record to expire by TTL; the issuance still fails.
		_ = m.store.Delete(ctx, email)
		return nil, fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
	}

	return &PasscodeIssue{
		Email:     email,
		Digits:    m.config.Digits,
		ExpiresAt: now.Add(m.config.TTL),
	}, nil
}

// Verify runs one counted attempt. See passcodeStore.Verify for the
// atomicity and consumption contract.
func (m *passcodeManager) Verify(ctx context.Context, email string, purpose PasscodePurpose, candidate, clientIP string, consume bool) (*passcodeOutcome, error) {
	return m.store.Verify(ctx, email, purpose, internal.HashSecret(candidate), clientIP, consume, m.config.MaxAttempts)
}

// outcomeError maps a failed outcome to its sentinel. Returns nil for a
// valid outcome.
func (m *passcodeManager) outcomeError(outcome *passcodeOutcome) error {
	switch {
	case outcome.Valid:
		return nil
	case outcome.Expired:
		return ErrOTPExpired
	case outcome.Exceeded:
		return ErrOTPAttemptsExceeded
	case outcome.PurposeMismatch:
		return ErrOTPPurposeMismatch
	case outcome.IPMismatch:
		return fmt.Errorf("%w: request origin mismatch", ErrOTPInvalid)
	default:
		remaining := m.config.MaxAttempts - outcome.Attempts
		if remaining < 0 {
			remaining = 0
		}
		return fmt.Errorf("%w: %d attempts remaining", ErrOTPInvalid, remaining)
	}
}
