package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/metrics"
	"auth-service/internal/repository"
)

const defaultRefreshTokenTTL = 7 * 24 * time.Hour

// IssuedRefreshToken es el secreto en claro entregado una unica vez al cliente.
type IssuedRefreshToken struct {
	Secret    string
	UserID    string
	FamilyID  string
	ExpiresAt time.Time
}

// RefreshTokenLedger emite, valida, rota y revoca refresh tokens opacos.
// Solo se persiste el digest del secreto.
type RefreshTokenLedger struct {
	repo               repository.RefreshTokenRepository
	clock              Clock
	ttl                time.Duration
	reuseRevokesFamily bool
	logger             *zap.Logger
	metrics            *metrics.Metrics
}

type RefreshLedgerOption func(*RefreshTokenLedger)

// WithReuseDetection revoca toda la familia cuando se intenta rotar un token
// ya revocado.
func WithReuseDetection(enabled bool) RefreshLedgerOption {
	return func(l *RefreshTokenLedger) { l.reuseRevokesFamily = enabled }
}

func WithRefreshMetrics(m *metrics.Metrics) RefreshLedgerOption {
	return func(l *RefreshTokenLedger) { l.metrics = m }
}

func NewRefreshTokenLedger(repo repository.RefreshTokenRepository, clock Clock, ttl time.Duration, logger *zap.Logger, opts ...RefreshLedgerOption) *RefreshTokenLedger {
	if ttl <= 0 {
		ttl = defaultRefreshTokenTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &RefreshTokenLedger{
		repo:               repo,
		clock:              orSystemClock(clock),
		ttl:                ttl,
		reuseRevokesFamily: true,
		logger:             logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue crea un token para userID. Si familyID esta vacio se abre una familia nueva.
func (l *RefreshTokenLedger) Issue(ctx context.Context, userID, familyID string) (IssuedRefreshToken, error) {
	record, secret, err := l.newRecord(userID, familyID)
	if err != nil {
		return IssuedRefreshToken{}, err
	}
	if err := l.repo.Create(ctx, record); err != nil {
		return IssuedRefreshToken{}, err
	}
	return IssuedRefreshToken{
		Secret:    secret,
		UserID:    userID,
		FamilyID:  record.FamilyID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Validate busca el token por digest y devuelve el registro si sigue vivo.
func (l *RefreshTokenLedger) Validate(ctx context.Context, secret string) (domain.RefreshToken, error) {
	if strings.TrimSpace(secret) == "" {
		return domain.RefreshToken{}, domain.ErrTokenNotFound
	}
	record, err := l.repo.GetByHash(ctx, hashToken(secret))
	if err != nil {
		return domain.RefreshToken{}, err
	}
	if record.IsRevoked() {
		return record, domain.ErrTokenRevoked
	}
	if record.IsExpired(l.clock.Now()) {
		return record, domain.ErrTokenExpired
	}
	return record, nil
}

// Rotate revoca el token y emite su sucesor en la misma familia. Solo una
// rotacion por token puede tener exito; las demas ven ErrTokenRevoked.
func (l *RefreshTokenLedger) Rotate(ctx context.Context, secret string) (IssuedRefreshToken, error) {
	current, err := l.Validate(ctx, secret)
	if err != nil {
		if errors.Is(err, domain.ErrTokenRevoked) {
			l.onReuse(ctx, current)
		}
		l.metrics.RefreshRotation(rotationResult(err))
		return IssuedRefreshToken{}, err
	}

	successor, newSecret, err := l.newRecord(current.UserID, current.FamilyID)
	if err != nil {
		return IssuedRefreshToken{}, err
	}
	// Perder la carrera contra otra rotacion no revoca la familia.
	if err := l.repo.Rotate(ctx, current.ID, l.clock.Now(), successor); err != nil {
		l.metrics.RefreshRotation(rotationResult(err))
		return IssuedRefreshToken{}, err
	}

	l.metrics.RefreshRotation("success")
	return IssuedRefreshToken{
		Secret:    newSecret,
		UserID:    successor.UserID,
		FamilyID:  successor.FamilyID,
		ExpiresAt: successor.ExpiresAt,
	}, nil
}

// Revoke invalida un unico token (logout). Revocar dos veces no es error.
func (l *RefreshTokenLedger) Revoke(ctx context.Context, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return domain.ErrTokenNotFound
	}
	record, err := l.repo.GetByHash(ctx, hashToken(secret))
	if err != nil {
		return err
	}
	if record.IsRevoked() {
		return nil
	}
	return l.repo.Revoke(ctx, record.ID, l.clock.Now())
}

// RevokeAll invalida todos los tokens vivos del usuario.
func (l *RefreshTokenLedger) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return l.repo.RevokeAllForUser(ctx, userID, l.clock.Now())
}

func (l *RefreshTokenLedger) newRecord(userID, familyID string) (domain.RefreshToken, string, error) {
	secret, err := newOpaqueToken()
	if err != nil {
		return domain.RefreshToken{}, "", err
	}
	if familyID == "" {
		familyID = uuid.NewString()
	}
	now := l.clock.Now()
	return domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hashToken(secret),
		FamilyID:  familyID,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}, secret, nil
}

func (l *RefreshTokenLedger) onReuse(ctx context.Context, token domain.RefreshToken) {
	l.metrics.RefreshReuse()
	if !l.reuseRevokesFamily || token.FamilyID == "" {
		l.logger.Warn("revoked refresh token presented", zap.String("user_id", token.UserID))
		return
	}
	n, err := l.repo.RevokeFamily(ctx, token.FamilyID, l.clock.Now())
	if err != nil {
		l.logger.Error("revoke refresh family failed",
			zap.String("user_id", token.UserID),
			zap.String("family_id", token.FamilyID),
			zap.Error(err),
		)
		return
	}
	l.logger.Warn("refresh token reuse detected, family revoked",
		zap.String("user_id", token.UserID),
		zap.String("family_id", token.FamilyID),
		zap.Int64("revoked", n),
	)
}

func rotationResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenNotFound):
		return "not_found"
	default:
		return "error"
	}
}
