package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/email"
	"auth-service/internal/metrics"
	"auth-service/internal/repository"
)

const (
	TokenTypeBearer = "Bearer"

	defaultEmailVerificationTTL = 24 * time.Hour
	defaultPasswordResetTTL     = 30 * time.Minute
	defaultEmailSendTimeout     = 10 * time.Second
	maxFullNameLength           = 100
	maxAvatarURLLength          = 500

	dummyPassword = "not-a-real-password"
)

// Session es el par de tokens entregado al cliente tras autenticarse.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	AccessTTL        time.Duration
	RefreshToken     string
	RefreshExpiresAt time.Time
	TokenType        string
	User             domain.User
}

// RegisterInput son los datos de alta con email y password.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// AuthDeps agrupa los colaboradores de AuthService.
type AuthDeps struct {
	Users        repository.UserRepository
	Hasher       PasswordHasher
	Guard        *CredentialGuard
	Access       *AccessTokenIssuer
	Refresh      *RefreshTokenLedger
	Verification *VerificationTokenLedger
	Linker       *IdentityLinker
	Social       SocialProviderVerifier
	Email        email.Sender
	Limiter      RequestLimiter
	Metrics      *metrics.Metrics
	Clock        Clock
}

// AuthConfig son los parametros de los flujos de email.
type AuthConfig struct {
	FrontendURL          string
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	EmailSendTimeout     time.Duration
}

// AuthService orquesta los flujos de autenticacion sobre los componentes
// del nucleo.
type AuthService struct {
	logger *zap.Logger
	audit  *zap.Logger
	deps   AuthDeps
	cfg    AuthConfig
	dummy  string
}

func NewAuthService(logger *zap.Logger, deps AuthDeps, cfg AuthConfig) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Users == nil || deps.Hasher == nil || deps.Guard == nil || deps.Access == nil || deps.Refresh == nil || deps.Verification == nil {
		return nil, errors.New("auth service: missing required dependency")
	}
	if deps.Email == nil {
		deps.Email = email.NewDisabledSender("email sender not configured")
	}
	deps.Clock = orSystemClock(deps.Clock)
	if deps.Limiter == nil {
		deps.Limiter = NewMemoryRequestLimiter(deps.Clock, 10*time.Minute, 3)
	}
	if cfg.EmailVerificationTTL <= 0 {
		cfg.EmailVerificationTTL = defaultEmailVerificationTTL
	}
	if cfg.PasswordResetTTL <= 0 {
		cfg.PasswordResetTTL = defaultPasswordResetTTL
	}
	if cfg.EmailSendTimeout <= 0 {
		cfg.EmailSendTimeout = defaultEmailSendTimeout
	}
	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/")

	dummy, err := deps.Hasher.Encode(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("auth service: encode dummy hash: %w", err)
	}
	return &AuthService{
		logger: logger,
		audit:  logger.Named("audit"),
		deps:   deps,
		cfg:    cfg,
		dummy:  dummy,
	}, nil
}

// Register crea una cuenta local pendiente de verificacion y abre una sesion.
// El email de verificacion se envia despues de persistir todo; si falla solo
// se registra.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (Session, error) {
	emailAddr := domain.NormalizeEmail(input.Email)
	if !domain.ValidEmail(emailAddr) {
		return Session{}, domain.ErrInvalidEmail
	}
	if err := ValidatePassword(input.Password); err != nil {
		return Session{}, err
	}
	fullName := strings.TrimSpace(input.FullName)
	if len(fullName) > maxFullNameLength {
		return Session{}, fmt.Errorf("%w: full name too long", domain.ErrInvalidInput)
	}

	if _, err := s.deps.Users.GetByEmail(ctx, emailAddr); err == nil {
		return Session{}, domain.ErrEmailAlreadyRegistered
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return Session{}, err
	}

	hash, err := s.deps.Hasher.Encode(input.Password)
	if err != nil {
		return Session{}, fmt.Errorf("encode password: %w", err)
	}
	user := domain.User{
		ID:         uuid.NewString(),
		Email:      emailAddr,
		FullName:   fullName,
		Status:     domain.UserStatusPendingVerification,
		Credential: domain.NewCredential(hash),
		CreatedAt:  s.deps.Clock.Now(),
	}
	if err := s.deps.Users.Create(ctx, user); err != nil {
		return Session{}, err
	}

	verification, err := s.deps.Verification.Issue(ctx, user.ID, domain.VerificationEmail, s.cfg.EmailVerificationTTL)
	if err != nil {
		return Session{}, err
	}
	session, err := s.openSession(ctx, user, "")
	if err != nil {
		return Session{}, err
	}

	s.auditEvent(ctx, "USER_REGISTERED", user.ID, zap.String("method", "PASSWORD"))
	s.sendVerificationEmail(ctx, user, verification.Token)
	return session, nil
}

// Login autentica con email y password. Email inexistente y password
// incorrecto devuelven el mismo ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	emailAddr = domain.NormalizeEmail(emailAddr)
	user, err := s.deps.Users.GetByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return Session{}, err
	}
	if err != nil || user.IsDeleted() || !user.HasPassword() {
		s.deps.Hasher.Matches(password, s.dummy)
		s.deps.Metrics.LoginAttempt("invalid_credentials")
		s.auditEvent(ctx, "LOGIN_FAILED", user.ID, zap.String("reason", "UNKNOWN_ACCOUNT"))
		return Session{}, domain.ErrInvalidCredentials
	}

	snapshot := user.Credential.Clone()
	s.deps.Guard.Evaluate(snapshot)
	if err := s.deps.Guard.CheckNotLocked(snapshot); err != nil {
		s.deps.Metrics.LoginAttempt("locked")
		s.auditEvent(ctx, "LOGIN_FAILED", user.ID, zap.String("reason", "ACCOUNT_LOCKED"))
		return Session{}, err
	}

	matches := s.deps.Hasher.Matches(password, snapshot.PasswordHash)
	if matches && user.IsBanned() {
		s.deps.Metrics.LoginAttempt("banned")
		s.auditEvent(ctx, "LOGIN_FAILED", user.ID, zap.String("reason", "ACCOUNT_BANNED"))
		return Session{}, domain.ErrAccountBanned
	}
	var rehash string
	if matches && s.needsRehash(snapshot.PasswordHash) {
		if h, err := s.deps.Hasher.Encode(password); err == nil {
			rehash = h
		} else {
			s.logger.Warn("password rehash failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	locked := false
	err = s.deps.Users.UpdateCredential(ctx, user.ID, func(cred *domain.Credential) error {
		s.deps.Guard.Evaluate(cred)
		if err := s.deps.Guard.CheckNotLocked(cred); err != nil {
			return err
		}
		// La comparacion se hizo contra el hash leido antes del lock; si el
		// credential cambio entretanto, el intento cuenta como fallido.
		matches = matches && cred.PasswordHash == snapshot.PasswordHash
		if !matches {
			locked = s.deps.Guard.RecordFailure(cred)
			return nil
		}
		s.deps.Guard.RecordSuccess(cred)
		if rehash != "" {
			cred.PasswordHash = rehash
		}
		return nil
	})
	if errors.Is(err, domain.ErrAccountLocked) {
		s.deps.Metrics.LoginAttempt("locked")
		s.auditEvent(ctx, "LOGIN_FAILED", user.ID, zap.String("reason", "ACCOUNT_LOCKED"))
		return Session{}, err
	}
	if err != nil {
		return Session{}, fmt.Errorf("update credential: %w", err)
	}

	if !matches {
		if locked {
			s.deps.Metrics.Lockout()
			s.logger.Warn("account locked after repeated failures", zap.String("user_id", user.ID))
		}
		s.deps.Metrics.LoginAttempt("invalid_credentials")
		s.auditEvent(ctx, "LOGIN_FAILED", user.ID, zap.String("reason", "INVALID_PASSWORD"))
		return Session{}, domain.ErrInvalidCredentials
	}

	s.touchLastLogin(ctx, &user)
	session, err := s.openSession(ctx, user, "")
	if err != nil {
		return Session{}, err
	}
	s.deps.Metrics.LoginAttempt("success")
	s.auditEvent(ctx, "LOGIN_SUCCESS", user.ID, zap.String("method", "PASSWORD"))
	return session, nil
}

// Refresh rota el refresh token y emite un access token nuevo.
func (s *AuthService) Refresh(ctx context.Context, refreshSecret string) (Session, error) {
	record, err := s.deps.Refresh.Validate(ctx, refreshSecret)
	if err != nil && !errors.Is(err, domain.ErrTokenRevoked) {
		return Session{}, err
	}
	replayed := err != nil
	var user domain.User
	if err == nil {
		user, err = s.deps.Users.GetByID(ctx, record.UserID)
		if errors.Is(err, domain.ErrUserNotFound) {
			return Session{}, domain.ErrInvalidCredentials
		}
		if err != nil {
			return Session{}, err
		}
		if err := checkCanAuthenticate(user); err != nil {
			return Session{}, err
		}
	}

	// Un token revocado llega a Rotate para que aplique la deteccion de reuso.
	issued, err := s.deps.Refresh.Rotate(ctx, refreshSecret)
	if err != nil {
		if replayed {
			s.auditEvent(ctx, "REFRESH_REUSE", record.UserID, zap.String("family_id", record.FamilyID))
		}
		return Session{}, err
	}
	access, err := s.deps.Access.Mint(user.ID, user.Email)
	if err != nil {
		return Session{}, fmt.Errorf("mint access token: %w", err)
	}
	return Session{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		AccessTTL:        s.deps.Access.TTL(),
		RefreshToken:     issued.Secret,
		RefreshExpiresAt: issued.ExpiresAt,
		TokenType:        TokenTypeBearer,
		User:             user,
	}, nil
}

// Logout revoca un refresh token. Un token desconocido no es error.
func (s *AuthService) Logout(ctx context.Context, refreshSecret string) error {
	if err := s.deps.Refresh.Revoke(ctx, refreshSecret); err != nil && !errors.Is(err, domain.ErrTokenNotFound) {
		return err
	}
	s.auditEvent(ctx, "LOGOUT", "")
	return nil
}

// LogoutAll revoca todos los refresh tokens del usuario.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.deps.Refresh.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.auditEvent(ctx, "LOGOUT_ALL", userID, zap.Int64("revoked", n))
	return n, nil
}

// SocialLogin valida la credencial del proveedor, resuelve o crea la cuenta
// vinculada y abre una sesion.
func (s *AuthService) SocialLogin(ctx context.Context, provider, credential string) (Session, error) {
	if s.deps.Social == nil || s.deps.Linker == nil {
		return Session{}, fmt.Errorf("%w: social login not configured", domain.ErrProviderTokenInvalid)
	}
	provider = domain.NormalizeProvider(provider)
	profile, err := s.deps.Social.Verify(ctx, provider, credential)
	if err != nil {
		s.deps.Metrics.SocialLogin(provider, "rejected")
		s.auditEvent(ctx, "SOCIAL_LOGIN_FAILED", "", zap.String("provider", provider))
		return Session{}, err
	}

	result, err := s.deps.Linker.LinkOrCreate(ctx, provider, profile)
	if err != nil {
		s.deps.Metrics.SocialLogin(provider, "error")
		return Session{}, err
	}
	user := result.User
	if err := checkCanAuthenticate(user); err != nil {
		s.deps.Metrics.SocialLogin(provider, "refused")
		return Session{}, err
	}

	s.touchLastLogin(ctx, &user)
	session, err := s.openSession(ctx, user, "")
	if err != nil {
		return Session{}, err
	}
	s.deps.Metrics.SocialLogin(provider, string(result.Outcome))
	s.auditEvent(ctx, "LOGIN_SUCCESS", user.ID,
		zap.String("method", "SOCIAL"),
		zap.String("provider", provider),
		zap.String("outcome", string(result.Outcome)),
	)
	return session, nil
}

// VerifyEmail canjea un token de verificacion y activa la cuenta.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	userID, err := s.deps.Verification.Redeem(ctx, token, domain.VerificationEmail)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.deps.Users.MarkEmailVerified(ctx, userID); err != nil {
		return domain.User{}, err
	}
	s.auditEvent(ctx, "EMAIL_VERIFIED", userID)
	return s.deps.Users.GetByID(ctx, userID)
}

// ResendVerification emite un token de verificacion nuevo. No revela si el
// email existe.
func (s *AuthService) ResendVerification(ctx context.Context, emailAddr string) error {
	emailAddr = domain.NormalizeEmail(emailAddr)
	if !domain.ValidEmail(emailAddr) {
		return domain.ErrInvalidEmail
	}
	if !s.deps.Limiter.Allow(ctx, "verify:"+emailAddr) {
		return domain.ErrRateLimited
	}
	user, err := s.deps.Users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return domain.ErrEmailAlreadyVerified
	}
	if !user.CanLogin() {
		return nil
	}

	verification, err := s.deps.Verification.Issue(ctx, user.ID, domain.VerificationEmail, s.cfg.EmailVerificationTTL)
	if err != nil {
		return err
	}
	s.sendVerificationEmail(ctx, user, verification.Token)
	return nil
}

// RequestPasswordReset envia un link de reseteo. Siempre devuelve nil para
// emails desconocidos.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = domain.NormalizeEmail(emailAddr)
	if !domain.ValidEmail(emailAddr) {
		return domain.ErrInvalidEmail
	}
	if !s.deps.Limiter.Allow(ctx, "reset:"+emailAddr) {
		return domain.ErrRateLimited
	}
	user, err := s.deps.Users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.CanLogin() {
		return nil
	}

	reset, err := s.deps.Verification.Issue(ctx, user.ID, domain.VerificationPasswordReset, s.cfg.PasswordResetTTL)
	if err != nil {
		return err
	}
	s.auditEvent(ctx, "PASSWORD_RESET_REQUESTED", user.ID)

	link := s.link("/auth/reset-password", reset.Token)
	s.sendEmail(ctx, user, "password reset", func(ctx context.Context) error {
		return s.deps.Email.SendPasswordResetEmail(ctx, user.Email, user.FullName, link)
	})
	return nil
}

// ConfirmPasswordReset canjea el token de reset, reemplaza la credencial y
// revoca todas las sesiones del usuario.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	userID, err := s.deps.Verification.Redeem(ctx, token, domain.VerificationPasswordReset)
	if err != nil {
		return err
	}
	hash, err := s.deps.Hasher.Encode(newPassword)
	if err != nil {
		return fmt.Errorf("encode password: %w", err)
	}
	if err := s.deps.Users.ReplaceCredential(ctx, userID, *domain.NewCredential(hash)); err != nil {
		return err
	}
	revoked, err := s.deps.Refresh.RevokeAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	s.auditEvent(ctx, "PASSWORD_RESET", userID, zap.Int64("sessions_revoked", revoked))
	return nil
}

// Profile devuelve el usuario autenticado.
func (s *AuthService) Profile(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if user.IsDeleted() {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile actualiza nombre y avatar del usuario.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, fullName, avatarURL string) (domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	avatarURL = strings.TrimSpace(avatarURL)
	if len(fullName) > maxFullNameLength || len(avatarURL) > maxAvatarURLLength {
		return domain.User{}, fmt.Errorf("%w: profile field too long", domain.ErrInvalidInput)
	}
	if avatarURL != "" {
		if u, err := url.Parse(avatarURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.User{}, fmt.Errorf("%w: avatar url must be http(s)", domain.ErrInvalidInput)
		}
	}
	if _, err := s.Profile(ctx, userID); err != nil {
		return domain.User{}, err
	}
	if err := s.deps.Users.UpdateProfile(ctx, userID, fullName, avatarURL); err != nil {
		return domain.User{}, err
	}
	s.auditEvent(ctx, "PROFILE_UPDATED", userID)
	return s.deps.Users.GetByID(ctx, userID)
}

func (s *AuthService) openSession(ctx context.Context, user domain.User, familyID string) (Session, error) {
	access, err := s.deps.Access.Mint(user.ID, user.Email)
	if err != nil {
		return Session{}, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.deps.Refresh.Issue(ctx, user.ID, familyID)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return Session{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		AccessTTL:        s.deps.Access.TTL(),
		RefreshToken:     refresh.Secret,
		RefreshExpiresAt: refresh.ExpiresAt,
		TokenType:        TokenTypeBearer,
		User:             user,
	}, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, user *domain.User) {
	now := s.deps.Clock.Now()
	if err := s.deps.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.LastLoginAt = &now
}

func (s *AuthService) needsRehash(digest string) bool {
	r, ok := s.deps.Hasher.(interface{ NeedsRehash(string) bool })
	return ok && r.NeedsRehash(digest)
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user domain.User, token string) {
	link := s.link("/auth/verify-email", token)
	s.sendEmail(ctx, user, "verification", func(ctx context.Context) error {
		return s.deps.Email.SendVerificationEmail(ctx, user.Email, user.FullName, link)
	})
}

// sendEmail corre despues de persistir el token; un fallo no lo deshace.
func (s *AuthService) sendEmail(ctx context.Context, user domain.User, kind string, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.EmailSendTimeout)
	defer cancel()
	if err := send(ctx); err != nil {
		s.logger.Warn("email delivery failed",
			zap.String("kind", kind),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
}

func (s *AuthService) link(path, token string) string {
	return s.cfg.FrontendURL + path + "?token=" + url.QueryEscape(token)
}

func (s *AuthService) auditEvent(ctx context.Context, action, userID string, fields ...zap.Field) {
	if userID == "" {
		userID = "ANONYMOUS"
	}
	base := []zap.Field{
		zap.String("action", action),
		zap.String("user_id", userID),
		zap.String("ip", ClientIPFromContext(ctx)),
	}
	s.audit.Info("audit", append(base, fields...)...)
}

func checkCanAuthenticate(user domain.User) error {
	switch {
	case user.IsBanned():
		return domain.ErrAccountBanned
	case user.IsDeleted():
		return domain.ErrInvalidCredentials
	}
	return nil
}

type clientIPKey struct{}

// WithClientIP guarda la IP del cliente para los eventos de auditoria.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
