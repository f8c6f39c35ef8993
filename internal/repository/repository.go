package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"auth-service/internal/domain"
)

// UserRepository persiste el agregado User (usuario, credencial e identidades sociales).
type UserRepository interface {
	// Create inserta el usuario con su credencial e identidades en una transaccion.
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetBySocialIdentity(ctx context.Context, provider, providerUID string) (domain.User, error)
	AttachSocialIdentity(ctx context.Context, identity domain.SocialIdentity) error
	// UpdateCredential bloquea la fila de la credencial, aplica fn y persiste el
	// resultado. Si fn devuelve error no se escribe nada.
	UpdateCredential(ctx context.Context, userID string, fn func(cred *domain.Credential) error) error
	// ReplaceCredential reemplaza la credencial completa (reset de password).
	ReplaceCredential(ctx context.Context, userID string, cred domain.Credential) error
	MarkEmailVerified(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, userID, fullName, avatarURL string) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// RefreshTokenRepository persiste refresh tokens por digest.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (domain.RefreshToken, error)
	// Rotate revoca oldID solo si sigue vivo e inserta successor en la misma
	// transaccion. Devuelve ErrTokenRevoked si otro llamador ya lo revoco.
	Rotate(ctx context.Context, oldID string, revokedAt time.Time, successor domain.RefreshToken) error
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
	RevokeFamily(ctx context.Context, familyID string, revokedAt time.Time) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time) (int64, error)
}

// VerificationTokenRepository persiste tokens de verificacion por digest.
type VerificationTokenRepository interface {
	// Replace borra los tokens sin usar de (usuario, tipo) e inserta token.
	Replace(ctx context.Context, token domain.VerificationToken) error
	GetByHash(ctx context.Context, tokenHash string) (domain.VerificationToken, error)
	// MarkUsed marca el token como usado una unica vez; si ya lo estaba
	// devuelve ErrTokenAlreadyUsed y si ya no existe ErrTokenNotFound.
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
}

const pgUniqueViolation = "23505"

// uniqueViolation devuelve el nombre de la constraint violada, si el error es
// una violacion de unicidad de Postgres.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
