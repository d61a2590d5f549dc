package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
)

const sqliteTimeFormat = time.RFC3339Nano

type sqliteUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteUserRepository returns a SQLite-backed implementation.
func NewSQLiteUserRepository(db *sql.DB) UserRepository {
	return &sqliteUserRepository{db: db, now: time.Now}
}

func (r *sqliteUserRepository) Save(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, password_hash, totp_secret, two_factor_enabled, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            username = excluded.username,
            password_hash = excluded.password_hash,
            totp_secret = excluded.totp_secret,
            two_factor_enabled = excluded.two_factor_enabled,
            updated_at = excluded.updated_at
        RETURNING created_at, updated_at`

	now := r.now().UTC().Format(sqliteTimeFormat)
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		nullableString(user.TOTPSecret),
		user.TwoFactorEnabled,
		now,
		now,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return err
	}
	return setTimestamps(user, createdAt, updatedAt)
}

func (r *sqliteUserRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	const query = `
        UPDATE users SET password_hash = ?, updated_at = ?
        WHERE id = ? AND password_hash = ?`

	res, err := r.db.ExecContext(ctx, query, newHash, r.now().UTC().Format(sqliteTimeFormat), id, oldHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrStaleRecord
	}
	return nil
}

func (r *sqliteUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, totp_secret, two_factor_enabled, created_at, updated_at
        FROM users WHERE id = ?`

	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, totp_secret, two_factor_enabled, created_at, updated_at
        FROM users WHERE username = ?`

	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *sqliteUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqliteUserRepository) scanUser(row *sql.Row) (*domain.User, error) {
	var (
		user                 domain.User
		secret               sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&secret,
		&user.TwoFactorEnabled,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	user.TOTPSecret = secret.String
	if err := setTimestamps(&user, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func setTimestamps(user *domain.User, createdAt, updatedAt string) error {
	created, err := time.Parse(sqliteTimeFormat, createdAt)
	if err != nil {
		return fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := time.Parse(sqliteTimeFormat, updatedAt)
	if err != nil {
		return fmt.Errorf("parse updated_at: %w", err)
	}
	user.CreatedAt = created
	user.UpdatedAt = updated
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
