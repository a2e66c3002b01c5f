package campusauth

import (
	"context"
	"time"
)

// IdentityStatus is the identity lifecycle state. Modeled as a closed tagged
// type so illegal transitions are construction-time errors rather than
// string typos.
type IdentityStatus uint8

const (
	// StatusPending: record exists (first OTP verified or admin-invited)
	// but profile setup has not completed.
	StatusPending IdentityStatus = iota
	// StatusAccepted: profile complete but not currently permitted to
	// authenticate (admin-deactivated or awaiting approval).
	StatusAccepted
	// StatusActive: terminal state; full signin allowed.
	StatusActive
)

func (s IdentityStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// Identity is the durable principal record. The engine owns the lifecycle
// transitions; the CredentialStore owns persistence.
type Identity struct {
	ID       string
	Email    string
	Role     string
	TenantID string

	// PasswordHash is empty until profile setup completes.
	PasswordHash string
	Verified     bool
	Status       IdentityStatus

	// MustResetPassword forces the password-reset branch on next signin.
	MustResetPassword bool
	// TemporaryPassword marks admin-invited identities whose initial
	// password was machine-generated.
	TemporaryPassword bool

	FullName string
	Contact  string

	CreatedAt   time.Time
	LastLoginAt time.Time
}

// CanAuthenticate reports whether full token issuance is allowed for the
// identity's current state.
func (i *Identity) CanAuthenticate() bool {
	return i.Status == StatusActive && i.Verified && i.PasswordHash != ""
}

// CredentialStore is the durable identity adapter. Implementations must
// return ErrIdentityNotFound for missing records and
// ErrEmailAlreadyRegistered for unique-email violations on Create; any
// other failure is treated as infrastructure fault.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	Update(ctx context.Context, identity *Identity) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// PasscodeSender delivers a passcode out of band. A returned error triggers
// compensating deletion of the stored record, so a code is never live
// without a delivered copy.
type PasscodeSender interface {
	Send(ctx context.Context, email, code string, purpose PasscodePurpose) error
}

// TenantProvisioner creates the owning tenant record when a
// principal-equivalent role completes profile setup. Optional; when absent
// the identity keeps its pre-assigned tenant.
type TenantProvisioner interface {
	Provision(ctx context.Context, identity *Identity) (tenantID string, err error)
}

// PasscodePurpose tags a passcode record with the flow it was issued for.
type PasscodePurpose string

const (
	PasscodeSignup PasscodePurpose = "signup"
	PasscodeSignin PasscodePurpose = "signin"
	PasscodeReset  PasscodePurpose = "password_reset"
)

// Next-step markers returned by the signin and signup flows.
const (
	StepProfileSetup  = "profile_setup"
	StepPasswordReset = "password_reset"
	StepDone          = "done"
)

// PasscodeIssue reports a successful OTP issuance. The code itself is never
// returned to the caller.
type PasscodeIssue struct {
	Email     string
	Digits    int
	ExpiresAt time.Time
}

// SigninChallenge is the response to BeginSignin. Exists is reported only
// here, never through differing errors, so the endpoint cannot be used for
// account enumeration timing beyond this deliberate flag.
type SigninChallenge struct {
	Exists    bool
	Digits    int
	ExpiresAt time.Time
}

// TokenPair is a freshly minted access+refresh pair bound to one session.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// SigninResult is the post-OTP branch outcome: either a full token pair
// (NextStep == StepDone) or a purpose-scoped temporary token for the step
// named by NextStep.
type SigninResult struct {
	NextStep  string
	TempToken string
	Tokens    *TokenPair
}

// SessionSummary is the device-management view of one session.
type SessionSummary struct {
	SessionID  string
	Device     string
	IP         string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	IsCurrent  bool
}

// ProfileSetupRequest finalizes a pending identity.
type ProfileSetupRequest struct {
	Password string
	FullName string
	Contact  string
	Role     string
}
