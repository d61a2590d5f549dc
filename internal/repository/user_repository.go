package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
)

// UserRepository is the user record store. Save is an atomic upsert keyed by ID;
// misses return domain.ErrRecordNotFound and username collisions
// domain.ErrUsernameTaken. UpdatePasswordHash swaps only the password hash and
// only while the stored hash still equals oldHash, otherwise it returns
// domain.ErrStaleRecord.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error
	Ping(ctx context.Context) error
}

const pgUniqueViolation = "23505"

// pgQuerier is the subset of *pgxpool.Pool the repository needs.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type userRepository struct {
	pool pgQuerier
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool pgQuerier) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, password_hash, totp_secret, two_factor_enabled)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            username = EXCLUDED.username,
            password_hash = EXCLUDED.password_hash,
            totp_secret = EXCLUDED.totp_secret,
            two_factor_enabled = EXCLUDED.two_factor_enabled,
            updated_at = NOW()
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		nullableString(user.TOTPSecret),
		user.TwoFactorEnabled,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	const query = `
        UPDATE users SET password_hash = $3, updated_at = NOW()
        WHERE id = $1 AND password_hash = $2
        RETURNING updated_at`

	var updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query, id, oldHash, newHash).Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrStaleRecord
		}
		return err
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, totp_secret, two_factor_enabled, created_at, updated_at
        FROM users WHERE id=$1`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, totp_secret, two_factor_enabled, created_at, updated_at
        FROM users WHERE username=$1`

	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *userRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *userRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user   domain.User
		secret *string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&secret,
		&user.TwoFactorEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	if secret != nil {
		user.TOTPSecret = *secret
	}
	return &user, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
