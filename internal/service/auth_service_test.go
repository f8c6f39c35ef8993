package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/metrics"
	"auth-service/internal/repository"
)

type sentEmail struct {
	kind string
	to   string
	link string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (r *recordingSender) SendVerificationEmail(_ context.Context, to, _, link string) error {
	return r.record("verification", to, link)
}

func (r *recordingSender) SendPasswordResetEmail(_ context.Context, to, _, link string) error {
	return r.record("reset", to, link)
}

func (r *recordingSender) record(kind, to, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEmail{kind: kind, to: to, link: link})
	return r.err
}

func (r *recordingSender) last(t *testing.T) sentEmail {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatalf("no email sent")
	}
	return r.sent[len(r.sent)-1]
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

type authFixture struct {
	svc     *AuthService
	users   *repository.MemoryUserRepository
	tokens  *repository.MemoryRefreshTokenRepository
	clock   *FakeClock
	mail    *recordingSender
	issuer  *AccessTokenIssuer
	social  *stubIDTokenVerifier
	metrics *metrics.Metrics
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	clock := NewFakeClock(testNow)
	users := repository.NewMemoryUserRepository()
	tokens := repository.NewMemoryRefreshTokenRepository()
	m := metrics.New(prometheus.NewRegistry())
	issuer, _ := newTestIssuer(t, clock)
	mail := &recordingSender{}
	stub := &stubIDTokenVerifier{}
	social := NewSocialVerifiers(time.Second, zap.NewNop())
	social.Register(ProviderGoogle, stub)

	svc, err := NewAuthService(zap.NewNop(), AuthDeps{
		Users:        users,
		Hasher:       NewArgon2Hasher(testArgon2Params),
		Guard:        NewCredentialGuard(clock, 5, 30*time.Minute),
		Access:       issuer,
		Refresh:      NewRefreshTokenLedger(tokens, clock, 7*24*time.Hour, zap.NewNop(), WithRefreshMetrics(m)),
		Verification: NewVerificationTokenLedger(repository.NewMemoryVerificationTokenRepository(), clock, zap.NewNop(), m),
		Linker:       NewIdentityLinker(users, clock, zap.NewNop()),
		Social:       social,
		Email:        mail,
		Limiter:      NewMemoryRequestLimiter(clock, 10*time.Minute, 3),
		Metrics:      m,
		Clock:        clock,
	}, AuthConfig{FrontendURL: "https://app.test/"})
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return &authFixture{svc: svc, users: users, tokens: tokens, clock: clock, mail: mail, issuer: issuer, social: stub, metrics: m}
}

func (f *authFixture) register(t *testing.T, emailAddr, password string) Session {
	t.Helper()
	session, err := f.svc.Register(context.Background(), RegisterInput{Email: emailAddr, Password: password, FullName: "Ana"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return session
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture(t)
	session := f.register(t, " User@Test.com ", "Sup3rSecret!")

	if session.User.Email != "user@test.com" || session.User.Status != domain.UserStatusPendingVerification {
		t.Fatalf("unexpected user: %+v", session.User)
	}
	if session.AccessToken == "" || session.RefreshToken == "" || session.TokenType != "Bearer" {
		t.Fatalf("expected a full session, got %+v", session)
	}
	if session.AccessTTL != 15*time.Minute || !session.AccessExpiresAt.Equal(testNow.Add(15*time.Minute)) {
		t.Fatalf("access ttl must follow the injected clock: ttl=%s exp=%s", session.AccessTTL, session.AccessExpiresAt)
	}
	if _, err := f.issuer.VerifyAccess(session.AccessToken); err != nil {
		t.Fatalf("access token should verify: %v", err)
	}

	mail := f.mail.last(t)
	if mail.kind != "verification" || mail.to != "user@test.com" {
		t.Fatalf("unexpected email: %+v", mail)
	}
	if !strings.HasPrefix(mail.link, "https://app.test/auth/verify-email?token=") {
		t.Fatalf("unexpected link: %s", mail.link)
	}

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "user@test.com", Password: "Sup3rSecret!"})
	if !errors.Is(err, domain.ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, RegisterInput{Email: "nope", Password: "Sup3rSecret!"}); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := f.svc.Register(ctx, RegisterInput{Email: "a@test.com", Password: "short"}); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestAuthService_RegisterSurvivesEmailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.mail.err = errors.New("smtp down")

	session := f.register(t, "user@test.com", "Sup3rSecret!")
	mail := f.mail.last(t)
	if _, err := f.svc.VerifyEmail(context.Background(), tokenFromLink(t, mail.link)); err != nil {
		t.Fatalf("token must stay valid after a failed send: %v", err)
	}
	if session.RefreshToken == "" {
		t.Fatalf("session should be issued")
	}
}

func TestAuthService_LoginUnknownAndWrongPasswordLookAlike(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "user@test.com", "Sup3rSecret!")

	_, errUnknown := f.svc.Login(ctx, "ghost@test.com", "Sup3rSecret!")
	_, errWrong := f.svc.Login(ctx, "user@test.com", "wrong-password")
	if !errors.Is(errUnknown, domain.ErrInvalidCredentials) || !errors.Is(errWrong, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("errors must be indistinguishable: %q vs %q", errUnknown, errWrong)
	}
}

func TestAuthService_LockoutScenario(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t, "user@test.com", "Sup3rSecret!")

	for i := 0; i < 5; i++ {
		if _, err := f.svc.Login(ctx, "user@test.com", "wrong-password"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!"); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("6th attempt: expected ErrAccountLocked, got %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.LockoutsTotal); got != 1 {
		t.Fatalf("expected one lockout, got %v", got)
	}

	f.clock.Advance(31 * time.Minute)
	session, err := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!")
	if err != nil {
		t.Fatalf("login after lockout window: %v", err)
	}
	stored, _ := f.users.GetByID(ctx, registered.User.ID)
	if stored.Credential.FailedAttempts != 0 || stored.Credential.LockedUntil != nil {
		t.Fatalf("expected counters reset, got %+v", stored.Credential)
	}
	if stored.LastLoginAt == nil || session.User.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestAuthService_LoginSuccessResetsCounter(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t, "user@test.com", "Sup3rSecret!")

	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(ctx, "user@test.com", "wrong-password")
	}
	if _, err := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!"); err != nil {
		t.Fatalf("login: %v", err)
	}
	stored, _ := f.users.GetByID(ctx, registered.User.ID)
	if stored.Credential.FailedAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", stored.Credential.FailedAttempts)
	}
}

// credentialSwapRepo reemplaza la credencial justo antes de tomar el lock,
// como lo haria un reset de password concurrente.
type credentialSwapRepo struct {
	*repository.MemoryUserRepository
	swap func(ctx context.Context, userID string)
}

func (r *credentialSwapRepo) UpdateCredential(ctx context.Context, userID string, fn func(cred *domain.Credential) error) error {
	if r.swap != nil {
		r.swap(ctx, userID)
	}
	return r.MemoryUserRepository.UpdateCredential(ctx, userID, fn)
}

func TestAuthService_LoginFailsWhenPasswordReplacedMidway(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t, "user@test.com", "Sup3rSecret!")

	newHash, err := f.svc.deps.Hasher.Encode("N3wSecret!!")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.svc.deps.Users = &credentialSwapRepo{
		MemoryUserRepository: f.users,
		swap: func(ctx context.Context, userID string) {
			if err := f.users.ReplaceCredential(ctx, userID, *domain.NewCredential(newHash)); err != nil {
				t.Errorf("replace credential: %v", err)
			}
		},
	}

	if _, err := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password after reset: expected ErrInvalidCredentials, got %v", err)
	}
	stored, _ := f.users.GetByID(ctx, registered.User.ID)
	if stored.Credential.PasswordHash != newHash {
		t.Fatalf("replaced credential must not be overwritten")
	}
	if stored.Credential.FailedAttempts != 1 {
		t.Fatalf("expected the attempt to count as a failure, got %d", stored.Credential.FailedAttempts)
	}
}

func TestAuthService_ConcurrentFailuresAreAllCounted(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t, "user@test.com", "Sup3rSecret!")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Login(ctx, "user@test.com", "wrong-password")
		}()
	}
	wg.Wait()

	stored, _ := f.users.GetByID(ctx, registered.User.ID)
	if stored.Credential.FailedAttempts != 4 {
		t.Fatalf("expected 4 failures, got %d", stored.Credential.FailedAttempts)
	}
}

func TestAuthService_LoginStatuses(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	banned := f.register(t, "banned@test.com", "Sup3rSecret!")
	deleted := f.register(t, "deleted@test.com", "Sup3rSecret!")
	f.users.SetStatus(banned.User.ID, domain.UserStatusBanned)
	f.users.SetStatus(deleted.User.ID, domain.UserStatusDeleted)

	if _, err := f.svc.Login(ctx, "banned@test.com", "Sup3rSecret!"); !errors.Is(err, domain.ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "banned@test.com", "wrong-password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password on banned account: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "deleted@test.com", "Sup3rSecret!"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for deleted account, got %v", err)
	}
}

func TestAuthService_LoginRehashesLegacyDigest(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t, "user@test.com", "Sup3rSecret!")

	legacy := "$2a$04$" + strings.Repeat("x", 53)
	_ = f.users.ReplaceCredential(ctx, registered.User.ID, *domain.NewCredential(legacy))
	if _, err := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("garbage bcrypt digest must not match, got %v", err)
	}

	weaker := NewArgon2Hasher(Argon2Params{Time: 1, Memory: 512, Threads: 1, KeyLen: 32, SaltLen: 16})
	digest, _ := weaker.Encode("Sup3rSecret!")
	_ = f.users.ReplaceCredential(ctx, registered.User.ID, *domain.NewCredential(digest))
	if _, err := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!"); err != nil {
		t.Fatalf("login: %v", err)
	}
	stored, _ := f.users.GetByID(ctx, registered.User.ID)
	if stored.Credential.PasswordHash == digest || !strings.Contains(stored.Credential.PasswordHash, "m=1024,") {
		t.Fatalf("expected digest upgraded to current params, got %s", stored.Credential.PasswordHash)
	}
}

func TestAuthService_RefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	first := f.register(t, "user@test.com", "Sup3rSecret!")

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken || second.User.ID != first.User.ID {
		t.Fatalf("unexpected rotated session: %+v", second)
	}
	if _, err := f.issuer.VerifyAccess(second.AccessToken); err != nil {
		t.Fatalf("new access token: %v", err)
	}

	if _, err := f.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("replay: expected ErrTokenRevoked, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, second.RefreshToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("family must be revoked after reuse, got %v", err)
	}
	if _, err := f.svc.Refresh(ctx, "not-a-token"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestAuthService_RefreshRejectsBannedUser(t *testing.T) {
	f := newAuthFixture(t)
	session := f.register(t, "user@test.com", "Sup3rSecret!")
	f.users.SetStatus(session.User.ID, domain.UserStatusBanned)

	if _, err := f.svc.Refresh(context.Background(), session.RefreshToken); !errors.Is(err, domain.ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestAuthService_LogoutAndLogoutAll(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	first := f.register(t, "user@test.com", "Sup3rSecret!")
	second, _ := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!")

	if err := f.svc.Logout(ctx, first.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := f.svc.Logout(ctx, first.RefreshToken); err != nil {
		t.Fatalf("second logout should be a no-op: %v", err)
	}
	if err := f.svc.Logout(ctx, "unknown"); err != nil {
		t.Fatalf("unknown token logout should be a no-op: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, first.RefreshToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	third, _ := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!")
	if _, err := f.svc.LogoutAll(ctx, first.User.ID); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	for _, secret := range []string{second.RefreshToken, third.RefreshToken} {
		if _, err := f.svc.Refresh(ctx, secret); !errors.Is(err, domain.ErrTokenRevoked) {
			t.Fatalf("expected every session revoked, got %v", err)
		}
	}
}

func TestAuthService_VerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "user@test.com", "Sup3rSecret!")
	token := tokenFromLink(t, f.mail.last(t).link)

	user, err := f.svc.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	if !user.EmailVerified || user.Status != domain.UserStatusActive {
		t.Fatalf("expected active verified user, got %+v", user)
	}
	if _, err := f.svc.VerifyEmail(ctx, token); !errors.Is(err, domain.ErrTokenAlreadyUsed) {
		t.Fatalf("expected ErrTokenAlreadyUsed, got %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "user@test.com"); !errors.Is(err, domain.ErrEmailAlreadyVerified) {
		t.Fatalf("expected ErrEmailAlreadyVerified, got %v", err)
	}
}

func TestAuthService_ResendVerificationInvalidatesPrevious(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "user@test.com", "Sup3rSecret!")
	old := tokenFromLink(t, f.mail.last(t).link)

	if err := f.svc.ResendVerification(ctx, "USER@test.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	fresh := tokenFromLink(t, f.mail.last(t).link)
	if fresh == old {
		t.Fatalf("expected a new token")
	}
	if _, err := f.svc.VerifyEmail(ctx, old); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("old token: expected ErrTokenNotFound, got %v", err)
	}
	if _, err := f.svc.VerifyEmail(ctx, fresh); err != nil {
		t.Fatalf("fresh token: %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "ghost@test.com"); err != nil {
		t.Fatalf("unknown email must be silent, got %v", err)
	}
}

func TestAuthService_RequestLimiter(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.svc.RequestPasswordReset(ctx, "ghost@test.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := f.svc.RequestPasswordReset(ctx, "ghost@test.com"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	session := f.register(t, "user@test.com", "Sup3rSecret!")
	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "user@test.com", "wrong-password")
	}

	if err := f.svc.RequestPasswordReset(ctx, "user@test.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	mail := f.mail.last(t)
	if mail.kind != "reset" || !strings.HasPrefix(mail.link, "https://app.test/auth/reset-password?token=") {
		t.Fatalf("unexpected reset email: %+v", mail)
	}
	token := tokenFromLink(t, mail.link)

	if err := f.svc.ConfirmPasswordReset(ctx, token, "short"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := f.svc.ConfirmPasswordReset(ctx, token, "N3wSecret!!"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}
	if err := f.svc.ConfirmPasswordReset(ctx, token, "Another1!!"); !errors.Is(err, domain.ErrTokenAlreadyUsed) {
		t.Fatalf("expected ErrTokenAlreadyUsed, got %v", err)
	}

	if _, err := f.svc.Refresh(ctx, session.RefreshToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("existing sessions must be revoked, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "user@test.com", "N3wSecret!!"); err != nil {
		t.Fatalf("login with new password (lock cleared by reset): %v", err)
	}
	if _, err := f.svc.Login(ctx, "user@test.com", "Sup3rSecret!"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password must fail, got %v", err)
	}
}

func TestAuthService_ConfirmResetRejectsVerificationToken(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "user@test.com", "Sup3rSecret!")
	token := tokenFromLink(t, f.mail.last(t).link)

	if err := f.svc.ConfirmPasswordReset(context.Background(), token, "N3wSecret!!"); !errors.Is(err, domain.ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestAuthService_SocialLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.social.profile = domain.ProviderProfile{ProviderUID: "g-1", Email: "ana@gmail.com", DisplayName: "Ana"}

	first, err := f.svc.SocialLogin(ctx, "google", "id-token")
	if err != nil {
		t.Fatalf("social login: %v", err)
	}
	if !first.User.EmailVerified || first.User.Status != domain.UserStatusActive {
		t.Fatalf("expected verified active user, got %+v", first.User)
	}
	second, err := f.svc.SocialLogin(ctx, "google", "id-token")
	if err != nil || second.User.ID != first.User.ID {
		t.Fatalf("expected same user on repeat login: %+v %v", second.User, err)
	}
	if got := testutil.ToFloat64(f.metrics.SocialLoginsTotal.WithLabelValues("google", "created")); got != 1 {
		t.Fatalf("expected one created social login, got %v", got)
	}

	f.social.err = domain.ErrProviderTokenInvalid
	if _, err := f.svc.SocialLogin(ctx, "google", "id-token"); !errors.Is(err, domain.ErrProviderTokenInvalid) {
		t.Fatalf("expected ErrProviderTokenInvalid, got %v", err)
	}
	if _, err := f.svc.SocialLogin(ctx, "apple", "id-token"); !errors.Is(err, domain.ErrProviderTokenInvalid) {
		t.Fatalf("unknown provider: expected ErrProviderTokenInvalid, got %v", err)
	}
}

func TestAuthService_ProfileUpdate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	session := f.register(t, "user@test.com", "Sup3rSecret!")

	user, err := f.svc.UpdateProfile(ctx, session.User.ID, " Ana Ruiz ", "https://img.test/ana.png")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if user.FullName != "Ana Ruiz" || user.AvatarURL != "https://img.test/ana.png" {
		t.Fatalf("unexpected profile: %+v", user)
	}
	if _, err := f.svc.UpdateProfile(ctx, session.User.ID, "Ana", "javascript:alert(1)"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.Profile(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
