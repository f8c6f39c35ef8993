package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/repository"
)

// LinkOutcome describe como se resolvio una identidad social.
type LinkOutcome string

const (
	LinkExisting LinkOutcome = "existing"
	LinkAttached LinkOutcome = "linked"
	LinkCreated  LinkOutcome = "created"
)

// LinkResult es el resultado de LinkOrCreate.
type LinkResult struct {
	User    domain.User
	Outcome LinkOutcome
}

// IdentityLinker resuelve o vincula identidades de proveedores sociales con
// cuentas locales.
type IdentityLinker struct {
	users                repository.UserRepository
	clock                Clock
	logger               *zap.Logger
	requireVerifiedEmail bool
}

var errEmailRace = errors.New("email registered concurrently")

type IdentityLinkerOption func(*IdentityLinker)

// WithRequireVerifiedEmail impide vincular por email a cuentas cuyo email no
// fue verificado.
func WithRequireVerifiedEmail(required bool) IdentityLinkerOption {
	return func(l *IdentityLinker) { l.requireVerifiedEmail = required }
}

func NewIdentityLinker(users repository.UserRepository, clock Clock, logger *zap.Logger, opts ...IdentityLinkerOption) *IdentityLinker {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &IdentityLinker{
		users:  users,
		clock:  orSystemClock(clock),
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve devuelve el usuario vinculado al par exacto (provider, providerUID).
func (l *IdentityLinker) Resolve(ctx context.Context, provider, providerUID string) (domain.User, bool, error) {
	user, err := l.users.GetBySocialIdentity(ctx, domain.NormalizeProvider(provider), strings.TrimSpace(providerUID))
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

// LinkOrCreate devuelve el usuario ya vinculado, vincula la identidad a la
// cuenta con el mismo email o crea un usuario nuevo con el email verificado.
func (l *IdentityLinker) LinkOrCreate(ctx context.Context, provider string, profile domain.ProviderProfile) (LinkResult, error) {
	provider = domain.NormalizeProvider(provider)
	providerUID := strings.TrimSpace(profile.ProviderUID)
	if provider == "" || providerUID == "" {
		return LinkResult{}, domain.ErrProviderTokenInvalid
	}

	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := l.linkOrCreateOnce(ctx, provider, providerUID, profile)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, errEmailRace):
			// Otro llamador creo la cuenta con este email: reintentar la vinculacion.
			continue
		case errors.Is(err, domain.ErrDuplicateProviderIdentity):
			user, found, rerr := l.Resolve(ctx, provider, providerUID)
			if rerr != nil {
				return LinkResult{}, rerr
			}
			if found {
				return LinkResult{User: user, Outcome: LinkExisting}, nil
			}
			return LinkResult{}, err
		default:
			return LinkResult{}, err
		}
	}
	return LinkResult{}, domain.ErrEmailAlreadyRegistered
}

func (l *IdentityLinker) linkOrCreateOnce(ctx context.Context, provider, providerUID string, profile domain.ProviderProfile) (LinkResult, error) {
	if user, found, err := l.Resolve(ctx, provider, providerUID); err != nil {
		return LinkResult{}, err
	} else if found {
		return LinkResult{User: user, Outcome: LinkExisting}, nil
	}

	email := domain.NormalizeEmail(profile.Email)
	if !domain.ValidEmail(email) {
		return LinkResult{}, domain.ErrInvalidEmail
	}
	now := l.clock.Now()
	identity := domain.SocialIdentity{
		ID:          uuid.NewString(),
		Provider:    provider,
		ProviderUID: providerUID,
		CreatedAt:   now,
	}

	existing, err := l.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if l.requireVerifiedEmail && !existing.EmailVerified {
			l.logger.Warn("social link refused: email not verified",
				zap.String("user_id", existing.ID),
				zap.String("provider", provider),
			)
			return LinkResult{}, domain.ErrEmailAlreadyRegistered
		}
		if err := existing.LinkSocialIdentity(identity); err != nil {
			return LinkResult{}, err
		}
		identity.UserID = existing.ID
		if err := l.users.AttachSocialIdentity(ctx, identity); err != nil {
			return LinkResult{}, err
		}
		l.logger.Info("social identity linked by email",
			zap.String("user_id", existing.ID),
			zap.String("provider", provider),
		)
		return LinkResult{User: existing, Outcome: LinkAttached}, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return LinkResult{}, err
	}

	user := domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		FullName:      strings.TrimSpace(profile.DisplayName),
		AvatarURL:     strings.TrimSpace(profile.AvatarURL),
		Status:        domain.UserStatusActive,
		EmailVerified: true,
		CreatedAt:     now,
	}
	if err := user.LinkSocialIdentity(identity); err != nil {
		return LinkResult{}, err
	}
	if err := l.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyRegistered) {
			return LinkResult{}, errEmailRace
		}
		return LinkResult{}, err
	}
	l.logger.Info("user created from social identity",
		zap.String("user_id", user.ID),
		zap.String("provider", provider),
	)
	return LinkResult{User: user, Outcome: LinkCreated}, nil
}
