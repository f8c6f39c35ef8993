package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-service/internal/db"
	"auth-service/internal/domain"
)

// PgRefreshTokenRepository implementa RefreshTokenRepository usando pgxpool.
type PgRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgRefreshTokenRepository(pool *pgxpool.Pool) *PgRefreshTokenRepository {
	return &PgRefreshTokenRepository{pool: pool}
}

func (r *PgRefreshTokenRepository) Create(ctx context.Context, token domain.RefreshToken) error {
	return insertRefreshToken(ctx, r.pool, token)
}

func (r *PgRefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (domain.RefreshToken, error) {
	const query = `
		SELECT id, user_id, token_hash, family_id, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var t domain.RefreshToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.FamilyID,
		&t.ExpiresAt,
		&t.RevokedAt,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RefreshToken{}, domain.ErrTokenNotFound
	}
	return t, err
}

func (r *PgRefreshTokenRepository) Rotate(ctx context.Context, oldID string, revokedAt time.Time, successor domain.RefreshToken) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		const revoke = `
			UPDATE refresh_tokens
			SET revoked_at = $2
			WHERE id = $1 AND revoked_at IS NULL
		`
		tag, err := tx.Exec(ctx, revoke, oldID, revokedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrTokenRevoked
		}
		return insertRefreshToken(ctx, tx, successor)
	})
}

func (r *PgRefreshTokenRepository) Revoke(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, query, id, revokedAt)
	return err
}

func (r *PgRefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string, revokedAt time.Time) (int64, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE family_id = $1 AND revoked_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, familyID, revokedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time) (int64, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, userID, revokedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func insertRefreshToken(ctx context.Context, q db.Querier, t domain.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (id, user_id, token_hash, family_id, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query, t.ID, t.UserID, t.TokenHash, t.FamilyID, t.ExpiresAt, t.RevokedAt, t.CreatedAt)
	return err
}
