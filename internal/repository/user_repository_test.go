package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type fakeQuerier struct {
	row      fakeRow
	lastSQL  string
	lastArgs []any
	pingErr  error
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	q.lastArgs = args
	return q.row
}

func (q *fakeQuerier) Ping(context.Context) error {
	return q.pingErr
}

func TestPostgresRepository_FindByUsername(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	secret := "JBSWY3DPEHPK3PXP"
	q := &fakeQuerier{row: fakeRow{values: []any{"u-1", "alice", "hash", &secret, true, now, now}}}
	repo := NewUserRepository(q)

	user, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, secret, user.TOTPSecret)
	assert.True(t, user.TwoFactorEnabled)
	assert.Equal(t, []any{"alice"}, q.lastArgs)
	assert.Contains(t, q.lastSQL, "WHERE username=$1")
}

func TestPostgresRepository_NullSecret(t *testing.T) {
	now := time.Now()
	var secret *string
	q := &fakeQuerier{row: fakeRow{values: []any{"u-1", "alice", "hash", secret, false, now, now}}}

	user, err := NewUserRepository(q).FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Empty(t, user.TOTPSecret)
}

func TestPostgresRepository_NotFound(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}

	_, err := NewUserRepository(q).FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestPostgresRepository_SaveUniqueViolation(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}}}

	err := NewUserRepository(q).Save(context.Background(), &domain.User{ID: "u-2", Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestPostgresRepository_SaveWritesNullSecretAndTimestamps(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	q := &fakeQuerier{row: fakeRow{values: []any{created, updated}}}
	user := &domain.User{ID: "u-1", Username: "alice", PasswordHash: "hash"}

	require.NoError(t, NewUserRepository(q).Save(context.Background(), user))
	assert.Equal(t, created, user.CreatedAt)
	assert.Equal(t, updated, user.UpdatedAt)
	require.Len(t, q.lastArgs, 5)
	assert.Nil(t, q.lastArgs[3])
	assert.Contains(t, q.lastSQL, "ON CONFLICT (id) DO UPDATE")
}

func TestPostgresRepository_SavePropagatesOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	q := &fakeQuerier{row: fakeRow{err: boom}}

	err := NewUserRepository(q).Save(context.Background(), &domain.User{ID: "u-1"})
	assert.ErrorIs(t, err, boom)
}

func TestPostgresRepository_UpdatePasswordHash(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{row: fakeRow{values: []any{now}}}
	repo := NewUserRepository(q)

	require.NoError(t, repo.UpdatePasswordHash(context.Background(), "u-1", "old", "new"))
	assert.Contains(t, q.lastSQL, "WHERE id = $1 AND password_hash = $2")
	assert.NotContains(t, q.lastSQL, "two_factor_enabled")
	assert.Equal(t, []any{"u-1", "old", "new"}, q.lastArgs)

	q.row = fakeRow{err: pgx.ErrNoRows}
	err := repo.UpdatePasswordHash(context.Background(), "u-1", "old", "new")
	assert.ErrorIs(t, err, domain.ErrStaleRecord)
}
