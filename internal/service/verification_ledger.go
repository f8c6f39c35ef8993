package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/metrics"
	"auth-service/internal/repository"
)

// IssuedVerificationToken es el token en claro que viaja por email.
type IssuedVerificationToken struct {
	Token     string
	ExpiresAt time.Time
}

// VerificationTokenLedger maneja tokens tipados de un solo uso
// (verificacion de email y reset de password).
type VerificationTokenLedger struct {
	repo    repository.VerificationTokenRepository
	clock   Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewVerificationTokenLedger(repo repository.VerificationTokenRepository, clock Clock, logger *zap.Logger, m *metrics.Metrics) *VerificationTokenLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationTokenLedger{
		repo:    repo,
		clock:   orSystemClock(clock),
		logger:  logger,
		metrics: m,
	}
}

// Issue invalida los tokens sin usar de (userID, tokenType) y emite uno nuevo.
// Solo el ultimo token emitido de cada tipo es valido.
func (l *VerificationTokenLedger) Issue(ctx context.Context, userID string, tokenType domain.VerificationTokenType, ttl time.Duration) (IssuedVerificationToken, error) {
	if !tokenType.Valid() {
		return IssuedVerificationToken{}, fmt.Errorf("unknown verification token type %q", tokenType)
	}
	if ttl <= 0 {
		return IssuedVerificationToken{}, fmt.Errorf("verification token ttl must be positive")
	}
	secret, err := newOpaqueToken()
	if err != nil {
		return IssuedVerificationToken{}, err
	}
	now := l.clock.Now()
	token := domain.VerificationToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hashToken(secret),
		Type:      tokenType,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := l.repo.Replace(ctx, token); err != nil {
		return IssuedVerificationToken{}, err
	}
	return IssuedVerificationToken{Token: secret, ExpiresAt: token.ExpiresAt}, nil
}

// Redeem consume el token y devuelve el usuario dueño. El efecto (marcar
// email, cambiar password) lo aplica el llamador despues de este commit.
func (l *VerificationTokenLedger) Redeem(ctx context.Context, secret string, expected domain.VerificationTokenType) (string, error) {
	userID, err := l.redeem(ctx, secret, expected)
	l.metrics.VerificationRedeem(string(expected), redeemResult(err))
	return userID, err
}

func (l *VerificationTokenLedger) redeem(ctx context.Context, secret string, expected domain.VerificationTokenType) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", domain.ErrTokenNotFound
	}
	token, err := l.repo.GetByHash(ctx, hashToken(secret))
	if err != nil {
		return "", err
	}
	now := l.clock.Now()
	if token.IsExpired(now) {
		return "", domain.ErrTokenExpired
	}
	if token.IsUsed() {
		return "", domain.ErrTokenAlreadyUsed
	}
	if token.Type != expected {
		return "", domain.ErrTokenTypeMismatch
	}
	if err := l.repo.MarkUsed(ctx, token.ID, now); err != nil {
		return "", err
	}
	return token.UserID, nil
}

func redeemResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenAlreadyUsed):
		return "already_used"
	case errors.Is(err, domain.ErrTokenTypeMismatch):
		return "type_mismatch"
	default:
		return "error"
	}
}
