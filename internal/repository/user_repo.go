package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-service/internal/db"
	"auth-service/internal/domain"
)

const (
	constraintUsersEmail       = "users_email_key"
	constraintIdentityUID      = "social_identities_provider_uid_key"
	constraintIdentityProvider = "social_identities_user_provider_key"
)

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	return mapUserWriteError(db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		const insertUser = `
			INSERT INTO users (id, email, full_name, avatar_url, status, email_verified, created_at, last_login_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.Exec(ctx, insertUser,
			user.ID,
			user.Email,
			user.FullName,
			user.AvatarURL,
			string(user.Status),
			user.EmailVerified,
			user.CreatedAt,
			user.LastLoginAt,
		); err != nil {
			return err
		}

		if user.Credential != nil {
			if err := upsertCredential(ctx, tx, user.ID, *user.Credential); err != nil {
				return err
			}
		}
		for _, si := range user.SocialIdentities {
			si.UserID = user.ID
			if err := insertIdentity(ctx, tx, si); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return loadUser(ctx, r.pool, "u.id = $1", id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return loadUser(ctx, r.pool, "u.email = $1", email)
}

func (r *PgUserRepository) GetBySocialIdentity(ctx context.Context, provider, providerUID string) (domain.User, error) {
	const query = `SELECT user_id FROM social_identities WHERE provider = $1 AND provider_uid = $2`
	var userID string
	err := r.pool.QueryRow(ctx, query, provider, providerUID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return r.GetByID(ctx, userID)
}

func (r *PgUserRepository) AttachSocialIdentity(ctx context.Context, identity domain.SocialIdentity) error {
	return mapUserWriteError(insertIdentity(ctx, r.pool, identity))
}

func (r *PgUserRepository) UpdateCredential(ctx context.Context, userID string, fn func(cred *domain.Credential) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		const selectForUpdate = `
			SELECT password_hash, failed_attempts, locked_until
			FROM credentials
			WHERE user_id = $1
			FOR UPDATE
		`
		var cred domain.Credential
		err := tx.QueryRow(ctx, selectForUpdate, userID).Scan(
			&cred.PasswordHash,
			&cred.FailedAttempts,
			&cred.LockedUntil,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if err := fn(&cred); err != nil {
			return err
		}
		const update = `
			UPDATE credentials
			SET password_hash = $2, failed_attempts = $3, locked_until = $4
			WHERE user_id = $1
		`
		_, err = tx.Exec(ctx, update, userID, cred.PasswordHash, cred.FailedAttempts, cred.LockedUntil)
		return err
	})
}

func (r *PgUserRepository) ReplaceCredential(ctx context.Context, userID string, cred domain.Credential) error {
	return upsertCredential(ctx, r.pool, userID, cred)
}

func (r *PgUserRepository) MarkEmailVerified(ctx context.Context, userID string) error {
	const query = `
		UPDATE users
		SET email_verified = TRUE,
		    status = CASE WHEN status = $2 THEN $3 ELSE status END
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, userID,
		string(domain.UserStatusPendingVerification),
		string(domain.UserStatusActive),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, userID, fullName, avatarURL string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET full_name = $2, avatar_url = $3 WHERE id = $1`,
		userID, fullName, avatarURL,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *PgUserRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	return err
}

func loadUser(ctx context.Context, q db.Querier, where string, arg any) (domain.User, error) {
	query := `
		SELECT u.id, u.email, u.full_name, u.avatar_url, u.status, u.email_verified,
		       u.created_at, u.last_login_at,
		       c.password_hash, c.failed_attempts, c.locked_until
		FROM users u
		LEFT JOIN credentials c ON c.user_id = u.id
		WHERE ` + where

	var (
		u          domain.User
		status     string
		passHash   *string
		failed     *int
		lockedTill *time.Time
	)
	err := q.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.AvatarURL,
		&status,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.LastLoginAt,
		&passHash,
		&failed,
		&lockedTill,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Status = domain.UserStatus(status)
	if passHash != nil {
		u.Credential = &domain.Credential{PasswordHash: *passHash, LockedUntil: lockedTill}
		if failed != nil {
			u.Credential.FailedAttempts = *failed
		}
	}

	identities, err := listIdentities(ctx, q, u.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("list identities: %w", err)
	}
	u.SocialIdentities = identities
	return u, nil
}

func listIdentities(ctx context.Context, q db.Querier, userID string) ([]domain.SocialIdentity, error) {
	const query = `
		SELECT id, user_id, provider, provider_uid, created_at
		FROM social_identities
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SocialIdentity
	for rows.Next() {
		var si domain.SocialIdentity
		if err := rows.Scan(&si.ID, &si.UserID, &si.Provider, &si.ProviderUID, &si.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

func insertIdentity(ctx context.Context, q db.Querier, si domain.SocialIdentity) error {
	const query = `
		INSERT INTO social_identities (id, user_id, provider, provider_uid, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.Exec(ctx, query, si.ID, si.UserID, si.Provider, si.ProviderUID, si.CreatedAt)
	return err
}

func upsertCredential(ctx context.Context, q db.Querier, userID string, cred domain.Credential) error {
	const query = `
		INSERT INTO credentials (user_id, password_hash, failed_attempts, locked_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    failed_attempts = EXCLUDED.failed_attempts,
		    locked_until = EXCLUDED.locked_until
	`
	_, err := q.Exec(ctx, query, userID, cred.PasswordHash, cred.FailedAttempts, cred.LockedUntil)
	return err
}

func mapUserWriteError(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case constraintUsersEmail:
		return domain.ErrEmailAlreadyRegistered
	case constraintIdentityUID, constraintIdentityProvider:
		return domain.ErrDuplicateProviderIdentity
	}
	return err
}
