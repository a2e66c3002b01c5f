package campusauth

import (
	"errors"
	"time"

	"github.com/campuskit/campusauth/internal/metrics"
	"github.com/campuskit/campusauth/password"
	"github.com/campuskit/campusauth/token"
)

// FailureMode decides how Validate behaves when the revocation ledger
// backend is unreachable.
type FailureMode uint8

const (
	// FailOpen favors availability: an unreachable ledger is treated as
	// "not revoked". This is the default and carries a documented risk
	// window equal to the outage duration.
	FailOpen FailureMode = iota
	// FailClosed favors security: an unreachable ledger rejects every
	// token with ErrStoreUnavailable.
	FailClosed
)

// ValidationMode selects how much state Validate consults per request.
type ValidationMode uint8

const (
	// ModeJWTOnly checks signature, expiry and the revocation ledger.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict additionally requires the embedded session to still
	// exist, at the cost of one extra cache read per request.
	ModeStrict
)

// SessionConfig controls the session registry.
type SessionConfig struct {
	// TTL is the absolute session lifetime. Matches the refresh token TTL
	// by default so a session never outlives its last refresh token.
	TTL time.Duration
	// KeyPrefix namespaces all session keys in Redis.
	KeyPrefix string
}

// PasscodeConfig controls OTP issuance and verification.
type PasscodeConfig struct {
	Digits      int
	TTL         time.Duration
	MaxAttempts int

	// IssueLimit and IssueWindow bound how many passcodes one email can
	// request per window. Zero disables the limiter.
	IssueLimit  int
	IssueWindow time.Duration

	// BindIP records the requesting IP on the record and rejects
	// verification from a different IP when set.
	BindIP bool
}

// RevocationConfig controls the revocation ledger.
type RevocationConfig struct {
	FailureMode FailureMode
	// DefaultTTL sizes subject blacklist entries. Must shadow the
	// longest-lived token kind; defaulted to the refresh TTL.
	DefaultTTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the request path when
	// the buffer is full. Dropped counts are observable on the Engine.
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics registry.
type MetricsConfig struct {
	Enabled       bool
	EnableLatency bool
}

// SecurityConfig groups validation-hardening knobs.
type SecurityConfig struct {
	ValidationMode ValidationMode
	// MinPasswordLength applies before hashing. The argon2 layer enforces
	// its own byte minimum as well.
	MinPasswordLength int
}

// Config is the engine's full configuration. Populate it once, pass it to
// the Builder, and treat it as immutable afterwards.
type Config struct {
	Token      token.Config
	Session    SessionConfig
	Passcode   PasscodeConfig
	Revocation RevocationConfig
	Password   password.Config
	Security   SecurityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig

	// PrincipalRoles name the roles whose profile setup provisions a new
	// tenant through the TenantProvisioner.
	PrincipalRoles []string
}

// DefaultConfig returns a working configuration with conservative limits.
// Signing keys must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: token.Config{
			SigningMethod: token.MethodHS256,
			Issuer:        "campusauth",
			Leeway:        30 * time.Second,
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			TempTTL:       10 * time.Minute,
		},
		Session: SessionConfig{
			TTL:       30 * 24 * time.Hour,
			KeyPrefix: "cs",
		},
		Passcode: PasscodeConfig{
			Digits:      6,
			TTL:         5 * time.Minute,
			MaxAttempts: 3,
			IssueLimit:  5,
			IssueWindow: time.Hour,
		},
		Revocation: RevocationConfig{
			FailureMode: FailOpen,
			DefaultTTL:  30 * 24 * time.Hour,
		},
		Password: password.Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			ValidationMode:    ModeJWTOnly,
			MinPasswordLength: 10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			EnableLatency: true,
		},
	}
}

// Validate checks cross-field consistency. Codec key validation happens in
// token.NewCodec during Build.
func (c *Config) Validate() error {
	if c.Passcode.Digits < 4 || c.Passcode.Digits > 10 {
		return errors.New("passcode digits must be between 4 and 10")
	}
	if c.Passcode.TTL <= 0 {
		return errors.New("passcode ttl must be positive")
	}
	if c.Passcode.MaxAttempts < 1 {
		return errors.New("passcode max attempts must be at least 1")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Session.TTL < c.Token.RefreshTTL {
		return errors.New("session ttl must cover the refresh token ttl")
	}
	if c.Revocation.DefaultTTL < c.Token.RefreshTTL {
		return errors.New("revocation ttl must shadow the refresh token ttl")
	}
	if c.Security.MinPasswordLength < 8 {
		return errors.New("minimum password length must be at least 8")
	}
	return nil
}

func (c Config) metricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:       c.Metrics.Enabled,
		EnableLatency: c.Metrics.EnableLatency,
	}
}
