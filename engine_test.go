package campusauth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/campuskit/campusauth"
	"github.com/campuskit/campusauth/password"
	"github.com/campuskit/campusauth/store/memory"
)

// captureSender records the last code delivered per email so tests can
// replay it the way a mail recipient would.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	fail  bool
}

func (s *captureSender) Send(_ context.Context, email, code string, _ campusauth.PasscodePurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp unreachable")
	}
	if s.codes == nil {
		s.codes = make(map[string]string)
	}
	s.codes[email] = code
	return nil
}

func (s *captureSender) last(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type testEnv struct {
	engine *campusauth.Engine
	sender *captureSender
	store  *memory.IdentityStore
	mr     *miniredis.Miniredis
}

func newTestEnv(t *testing.T, mutate func(*campusauth.Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := campusauth.DefaultConfig()
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	// Cheapest parameters the hasher accepts; cost tuning is covered in
	// the password package tests.
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	sender := &captureSender{}
	store := memory.NewIdentityStore()

	engine, err := campusauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		WithPasscodeSender(sender).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, sender: sender, store: store, mr: mr}
}

const testPassword = "correct-horse-battery"

// signupActiveUser drives a full signup so later tests start from an
// active identity with one open session.
func (env *testEnv) signupActiveUser(t *testing.T, ctx context.Context, email string) *campusauth.TokenPair {
	t.Helper()

	if _, err := env.engine.BeginSignup(ctx, email); err != nil {
		t.Fatalf("begin signup: %v", err)
	}
	result, err := env.engine.VerifySignupOTP(ctx, email, env.sender.last(email))
	if err != nil {
		t.Fatalf("verify signup otp: %v", err)
	}
	if result.NextStep != campusauth.StepProfileSetup || result.TempToken == "" {
		t.Fatalf("unexpected signup result: %+v", result)
	}

	pair, err := env.engine.SetupProfile(ctx, result.TempToken, campusauth.ProfileSetupRequest{
		Password: testPassword,
		FullName: "Asha Iyer",
		Contact:  "+91-9000000000",
		Role:     "staff",
	})
	if err != nil {
		t.Fatalf("setup profile: %v", err)
	}
	return pair
}

// passwordSignin opens an additional session for an already-active user.
func (env *testEnv) passwordSignin(t *testing.T, ctx context.Context, email string) *campusauth.TokenPair {
	t.Helper()

	result, err := env.engine.PasswordSignin(ctx, email, testPassword)
	if err != nil {
		t.Fatalf("password signin: %v", err)
	}
	if result.NextStep != campusauth.StepDone || result.Tokens == nil {
		t.Fatalf("expected completed signin, got %+v", result)
	}
	return result.Tokens
}

func TestSignupFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.SessionID == "" {
		t.Fatalf("incomplete token pair: %+v", pair)
	}

	claims, err := env.engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Role != "staff" || claims.SessionID != pair.SessionID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// The identity is now fully active and can sign in by password.
	env.passwordSignin(t, ctx, "asha@college.test")
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.signupActiveUser(t, ctx, "asha@college.test")

	_, err := env.engine.BeginSignup(ctx, "asha@college.test")
	if !errors.Is(err, campusauth.ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
}

func TestBeginSigninDoesNotEnumerate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	challenge, err := env.engine.BeginSignin(ctx, "nobody@college.test")
	if err != nil {
		t.Fatalf("begin signin: %v", err)
	}
	if challenge.Exists {
		t.Fatal("unknown email must report Exists=false")
	}
	// A code is still delivered, so an observer watching for side effects
	// learns nothing either.
	if env.sender.last("nobody@college.test") == "" {
		t.Fatal("unknown email must still receive a code")
	}
}

func TestVerifySigninUnknownEmailRoutesToProfileSetup(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.engine.BeginSignin(ctx, "new@college.test"); err != nil {
		t.Fatalf("begin signin: %v", err)
	}
	result, err := env.engine.VerifySignin(ctx, "new@college.test", env.sender.last("new@college.test"))
	if err != nil {
		t.Fatalf("verify signin: %v", err)
	}
	if result.NextStep != campusauth.StepProfileSetup || result.TempToken == "" {
		t.Fatalf("expected profile setup branch, got %+v", result)
	}
}

func TestOTPSigninCompletesForActiveUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.signupActiveUser(t, ctx, "asha@college.test")

	if _, err := env.engine.BeginSignin(ctx, "asha@college.test"); err != nil {
		t.Fatalf("begin signin: %v", err)
	}
	result, err := env.engine.VerifySignin(ctx, "asha@college.test", env.sender.last("asha@college.test"))
	if err != nil {
		t.Fatalf("verify signin: %v", err)
	}
	if result.NextStep != campusauth.StepDone || result.Tokens == nil {
		t.Fatalf("expected completed signin, got %+v", result)
	}
}

func TestPasswordSigninCredentialFailuresAreUniform(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.signupActiveUser(t, ctx, "asha@college.test")

	_, unknownErr := env.engine.PasswordSignin(ctx, "ghost@college.test", testPassword)
	_, wrongErr := env.engine.PasswordSignin(ctx, "asha@college.test", "not-the-password")

	if !errors.Is(unknownErr, campusauth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, campusauth.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongErr)
	}
}

func TestOTPAttemptBound(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.signupActiveUser(t, ctx, "asha@college.test")
	if _, err := env.engine.BeginSignin(ctx, "asha@college.test"); err != nil {
		t.Fatalf("begin signin: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err := env.engine.VerifySignin(ctx, "asha@college.test", "000000")
		if !errors.Is(err, campusauth.ErrOTPInvalid) {
			t.Fatalf("attempt %d: expected ErrOTPInvalid, got %v", i+1, err)
		}
	}

	// Even the correct code is dead once the attempt budget is spent.
	_, err := env.engine.VerifySignin(ctx, "asha@college.test", env.sender.last("asha@college.test"))
	if !errors.Is(err, campusauth.ErrOTPAttemptsExceeded) {
		t.Fatalf("expected ErrOTPAttemptsExceeded, got %v", err)
	}
}

func TestCheckOTPLeavesCodeConsumable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.signupActiveUser(t, ctx, "asha@college.test")
	if _, err := env.engine.BeginSignin(ctx, "asha@college.test"); err != nil {
		t.Fatalf("begin signin: %v", err)
	}
	code := env.sender.last("asha@college.test")

	if err := env.engine.CheckOTP(ctx, "asha@college.test", code, campusauth.PasscodeSignin); err != nil {
		t.Fatalf("pre-check: %v", err)
	}
	if _, err := env.engine.VerifySignin(ctx, "asha@college.test", code); err != nil {
		t.Fatalf("consuming verify after pre-check: %v", err)
	}
}

func TestOTPIssueRateLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := env.engine.BeginSignin(ctx, "asha@college.test"); err != nil {
			t.Fatalf("issue %d: %v", i+1, err)
		}
	}
	_, err := env.engine.BeginSignin(ctx, "asha@college.test")
	if !errors.Is(err, campusauth.ErrOTPRateLimited) {
		t.Fatalf("expected ErrOTPRateLimited, got %v", err)
	}
}

func TestDeliveryFailureSurfaces(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.sender.fail = true
	_, err := env.engine.BeginSignup(ctx, "asha@college.test")
	if !errors.Is(err, campusauth.ErrOTPDeliveryFailed) {
		t.Fatalf("expected ErrOTPDeliveryFailed, got %v", err)
	}
}

func TestProfileSetupEnforcesPasswordPolicy(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.engine.BeginSignup(ctx, "asha@college.test"); err != nil {
		t.Fatalf("begin signup: %v", err)
	}
	result, err := env.engine.VerifySignupOTP(ctx, "asha@college.test", env.sender.last("asha@college.test"))
	if err != nil {
		t.Fatalf("verify signup otp: %v", err)
	}

	_, err = env.engine.SetupProfile(ctx, result.TempToken, campusauth.ProfileSetupRequest{
		Password: "short",
		Role:     "staff",
	})
	if !errors.Is(err, campusauth.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestRefreshRotationAndReuseDetection(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")

	rotated, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.SessionID != pair.SessionID {
		t.Fatalf("rotation must stay in the same session: %s vs %s", rotated.SessionID, pair.SessionID)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token must change on rotation")
	}

	// Replaying the superseded token burns the whole session.
	_, err = env.engine.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, campusauth.ErrStaleRefreshToken) {
		t.Fatalf("expected ErrStaleRefreshToken, got %v", err)
	}
	_, err = env.engine.Refresh(ctx, rotated.RefreshToken)
	if !errors.Is(err, campusauth.ErrSessionNotFound) {
		t.Fatalf("current token must also be dead after reuse, got %v", err)
	}
}

func TestRefreshAfterLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")

	if err := env.engine.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	_, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, campusauth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	_, err = env.engine.Validate(ctx, pair.AccessToken)
	if !errors.Is(err, campusauth.ErrTokenRevoked) {
		t.Fatalf("access token must be shadowed after logout, got %v", err)
	}
}

func TestDeactivateAccountIsImmediate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")
	claims, err := env.engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate before deactivation: %v", err)
	}

	if err := env.engine.DeactivateAccount(ctx, claims.Subject, "policy_violation"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// No propagation window: the very next check rejects both tokens.
	if _, err := env.engine.Validate(ctx, pair.AccessToken); !errors.Is(err, campusauth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, campusauth.ErrTokenRevoked) {
		t.Fatalf("refresh must also be rejected, got %v", err)
	}
	if _, err := env.engine.PasswordSignin(ctx, "asha@college.test", testPassword); !errors.Is(err, campusauth.ErrIdentityInactive) {
		t.Fatalf("fresh signin must be rejected, got %v", err)
	}
}

func TestRestoreAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")
	claims, err := env.engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := env.engine.DeactivateAccount(ctx, claims.Subject, "suspended"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := env.engine.RestoreAccount(ctx, claims.Subject); err != nil {
		t.Fatalf("restore: %v", err)
	}

	env.passwordSignin(t, ctx, "asha@college.test")
}

func TestDeactivatedIdentityCannotReenterViaSignup(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")
	claims, err := env.engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := env.engine.DeactivateAccount(ctx, claims.Subject, "policy_violation"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// Let the blacklist entry run out its TTL. The durable status alone
	// must keep the account out until RestoreAccount.
	env.mr.FastForward(31 * 24 * time.Hour)

	if _, err := env.engine.BeginSignup(ctx, "asha@college.test"); !errors.Is(err, campusauth.ErrIdentityInactive) {
		t.Fatalf("signup must be rejected after blacklist lapse, got %v", err)
	}
	if _, err := env.engine.PasswordSignin(ctx, "asha@college.test", testPassword); !errors.Is(err, campusauth.ErrIdentityInactive) {
		t.Fatalf("password signin must be rejected after blacklist lapse, got %v", err)
	}
}

func TestSignupTempTokenCannotPromoteDeactivatedIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Abandon a signup right after OTP verification so a pending identity
	// and a live profile-setup temp token exist.
	if _, err := env.engine.BeginSignup(ctx, "dev@college.test"); err != nil {
		t.Fatalf("begin signup: %v", err)
	}
	result, err := env.engine.VerifySignupOTP(ctx, "dev@college.test", env.sender.last("dev@college.test"))
	if err != nil {
		t.Fatalf("verify signup otp: %v", err)
	}

	// A second code issued before the account is shut off.
	if _, err := env.engine.BeginSignup(ctx, "dev@college.test"); err != nil {
		t.Fatalf("second begin signup: %v", err)
	}

	identity, err := env.store.FindByEmail(ctx, "dev@college.test")
	if err != nil {
		t.Fatalf("find identity: %v", err)
	}
	identity.Status = campusauth.StatusAccepted
	if err := env.store.Update(ctx, identity); err != nil {
		t.Fatalf("update identity: %v", err)
	}

	if _, err := env.engine.VerifySignupOTP(ctx, "dev@college.test", env.sender.last("dev@college.test")); !errors.Is(err, campusauth.ErrIdentityInactive) {
		t.Fatalf("otp verification must be rejected, got %v", err)
	}
	if _, err := env.engine.SetupProfile(ctx, result.TempToken, campusauth.ProfileSetupRequest{
		Password: testPassword,
		FullName: "Dev Menon",
	}); !errors.Is(err, campusauth.ErrIdentityInactive) {
		t.Fatalf("profile setup must be rejected, got %v", err)
	}

	after, err := env.store.FindByEmail(ctx, "dev@college.test")
	if err != nil {
		t.Fatalf("reload identity: %v", err)
	}
	if after.Status != campusauth.StatusAccepted {
		t.Fatalf("status changed to %v without a restore", after.Status)
	}
}

func TestResetTempTokenCannotReviveDeactivatedIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")
	claims, err := env.engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	identity, err := env.store.FindByEmail(ctx, "asha@college.test")
	if err != nil {
		t.Fatalf("find identity: %v", err)
	}
	identity.MustResetPassword = true
	if err := env.store.Update(ctx, identity); err != nil {
		t.Fatalf("update identity: %v", err)
	}

	// Signing in now routes to the password-reset branch and hands out a
	// temp token.
	result, err := env.engine.PasswordSignin(ctx, "asha@college.test", testPassword)
	if err != nil {
		t.Fatalf("password signin: %v", err)
	}
	if result.NextStep != campusauth.StepPasswordReset || result.TempToken == "" {
		t.Fatalf("expected password-reset branch, got %+v", result)
	}

	if err := env.engine.DeactivateAccount(ctx, claims.Subject, "suspended"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	env.mr.FastForward(31 * 24 * time.Hour)

	if _, err := env.engine.CompletePasswordReset(ctx, result.TempToken, "a-whole-new-password"); !errors.Is(err, campusauth.ErrIdentityInactive) {
		t.Fatalf("reset completion must be rejected, got %v", err)
	}
}

func TestListSessionsAndLogoutAllKeepCurrent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := campusauth.WithUserAgent(
		campusauth.WithClientIP(context.Background(), "10.1.2.3"),
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	)

	env.signupActiveUser(t, ctx, "asha@college.test")
	env.passwordSignin(t, ctx, "asha@college.test")
	current := env.passwordSignin(t, ctx, "asha@college.test")

	sessions, err := env.engine.ListSessions(ctx, current.AccessToken)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	currentCount := 0
	for _, s := range sessions {
		if s.IsCurrent {
			currentCount++
			if s.SessionID != current.SessionID {
				t.Fatalf("wrong session marked current: %+v", s)
			}
		}
		if s.IP != "10.1.2.3" {
			t.Fatalf("session missing client ip: %+v", s)
		}
	}
	if currentCount != 1 {
		t.Fatalf("exactly one session must be current, got %d", currentCount)
	}

	removed, err := env.engine.LogoutAll(ctx, current.AccessToken, true)
	if err != nil {
		t.Fatalf("logout all: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 sessions removed, got %d", removed)
	}

	remaining, err := env.engine.ListSessions(ctx, current.AccessToken)
	if err != nil {
		t.Fatalf("list after logout all: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SessionID != current.SessionID {
		t.Fatalf("only the current session should survive: %+v", remaining)
	}
}

func TestLogoutSessionOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	alice := env.signupActiveUser(t, ctx, "alice@college.test")
	bob := env.signupActiveUser(t, ctx, "bob@college.test")

	// Bob cannot end Alice's session; the failure reads as absence.
	err := env.engine.LogoutSession(ctx, bob.AccessToken, alice.SessionID)
	if !errors.Is(err, campusauth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	// Alice's session is untouched.
	if _, err := env.engine.Refresh(ctx, alice.RefreshToken); err != nil {
		t.Fatalf("alice's session must survive: %v", err)
	}
}

func TestPasswordResetInvalidatesSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")

	if _, err := env.engine.RequestPasswordReset(ctx, "asha@college.test"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	const newPassword = "an-entirely-new-secret"
	if err := env.engine.ConfirmPasswordReset(ctx, "asha@college.test", env.sender.last("asha@college.test"), newPassword); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, campusauth.ErrSessionNotFound) {
		t.Fatalf("pre-reset session must be gone, got %v", err)
	}
	if _, err := env.engine.PasswordSignin(ctx, "asha@college.test", testPassword); !errors.Is(err, campusauth.ErrInvalidCredentials) {
		t.Fatalf("old password must be rejected, got %v", err)
	}

	result, err := env.engine.PasswordSignin(ctx, "asha@college.test", newPassword)
	if err != nil {
		t.Fatalf("signin with new password: %v", err)
	}
	if result.NextStep != campusauth.StepDone {
		t.Fatalf("expected completed signin, got %+v", result)
	}
}

func TestStrictModeRequiresLiveSession(t *testing.T) {
	env := newTestEnv(t, func(cfg *campusauth.Config) {
		cfg.Security.ValidationMode = campusauth.ModeStrict
	})
	ctx := context.Background()

	env.signupActiveUser(t, ctx, "asha@college.test")
	first := env.passwordSignin(t, ctx, "asha@college.test")
	second := env.passwordSignin(t, ctx, "asha@college.test")

	if _, err := env.engine.Validate(ctx, first.AccessToken); err != nil {
		t.Fatalf("validate live session: %v", err)
	}

	// End the first session from the second one. The first access token
	// is cryptographically valid but its session is gone, which strict
	// mode treats as fatal.
	if err := env.engine.LogoutSession(ctx, second.AccessToken, first.SessionID); err != nil {
		t.Fatalf("logout first session: %v", err)
	}
	if _, err := env.engine.Validate(ctx, first.AccessToken); !errors.Is(err, campusauth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestValidateRejectsRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	pair := env.signupActiveUser(t, ctx, "asha@college.test")

	_, err := env.engine.Validate(ctx, pair.RefreshToken)
	if !errors.Is(err, campusauth.ErrTokenKindMismatch) {
		t.Fatalf("expected ErrTokenKindMismatch, got %v", err)
	}
}

func TestTempTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.engine.BeginSignup(ctx, "asha@college.test"); err != nil {
		t.Fatalf("begin signup: %v", err)
	}
	result, err := env.engine.VerifySignupOTP(ctx, "asha@college.test", env.sender.last("asha@college.test"))
	if err != nil {
		t.Fatalf("verify signup otp: %v", err)
	}

	req := campusauth.ProfileSetupRequest{Password: testPassword, Role: "staff"}
	if _, err := env.engine.SetupProfile(ctx, result.TempToken, req); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if _, err := env.engine.SetupProfile(ctx, result.TempToken, req); !errors.Is(err, campusauth.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked on replay, got %v", err)
	}
}

func TestEngineClosedRejectsCalls(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.Close()

	_, err := env.engine.BeginSignup(context.Background(), "asha@college.test")
	if !errors.Is(err, campusauth.ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
}
