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

// PgVerificationTokenRepository implementa VerificationTokenRepository usando pgxpool.
type PgVerificationTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgVerificationTokenRepository(pool *pgxpool.Pool) *PgVerificationTokenRepository {
	return &PgVerificationTokenRepository{pool: pool}
}

// Replace borra los tokens sin usar de (user_id, type) e inserta token. El
// lock sobre la fila del usuario serializa emisiones concurrentes.
func (r *PgVerificationTokenRepository) Replace(ctx context.Context, token domain.VerificationToken) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return replaceVerificationToken(ctx, tx, token)
	})
}

func replaceVerificationToken(ctx context.Context, q db.Querier, token domain.VerificationToken) error {
	const lockOwner = `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`
	tag, err := q.Exec(ctx, lockOwner, token.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	const purge = `
		DELETE FROM verification_tokens
		WHERE user_id = $1 AND type = $2 AND used_at IS NULL
	`
	if _, err := q.Exec(ctx, purge, token.UserID, string(token.Type)); err != nil {
		return err
	}
	const insert = `
		INSERT INTO verification_tokens (id, user_id, token_hash, type, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = q.Exec(ctx, insert,
		token.ID,
		token.UserID,
		token.TokenHash,
		string(token.Type),
		token.ExpiresAt,
		token.UsedAt,
		token.CreatedAt,
	)
	return err
}

func (r *PgVerificationTokenRepository) GetByHash(ctx context.Context, tokenHash string) (domain.VerificationToken, error) {
	const query = `
		SELECT id, user_id, token_hash, type, expires_at, used_at, created_at
		FROM verification_tokens
		WHERE token_hash = $1
	`
	var (
		t       domain.VerificationToken
		tokType string
	)
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&tokType,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.VerificationToken{}, domain.ErrTokenNotFound
	}
	if err != nil {
		return domain.VerificationToken{}, err
	}
	t.Type = domain.VerificationTokenType(tokType)
	return t, nil
}

func (r *PgVerificationTokenRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	return markVerificationTokenUsed(ctx, r.pool, id, usedAt)
}

// markVerificationTokenUsed distingue un token ya usado de uno que fue
// reemplazado (borrado) entre la lectura y el update.
func markVerificationTokenUsed(ctx context.Context, q db.Querier, id string, usedAt time.Time) error {
	const update = `UPDATE verification_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`
	tag, err := q.Exec(ctx, update, id, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	const exists = `SELECT EXISTS (SELECT 1 FROM verification_tokens WHERE id = $1)`
	var found bool
	if err := q.QueryRow(ctx, exists, id).Scan(&found); err != nil {
		return err
	}
	if !found {
		return domain.ErrTokenNotFound
	}
	return domain.ErrTokenAlreadyUsed
}
