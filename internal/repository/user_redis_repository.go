package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
)

const redisSaveRetries = 5

type redisUserRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisUserRepository stores each user as a hash under {prefix}:user:{id} with a
// {prefix}:username:{name} index key. Saves run in WATCH/MULTI transactions.
func NewRedisUserRepository(client redis.UniversalClient, prefix string) UserRepository {
	return &redisUserRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *redisUserRepository) userKey(id string) string {
	return r.prefix + ":user:" + id
}

func (r *redisUserRepository) usernameKey(username string) string {
	return r.prefix + ":username:" + username
}

func (r *redisUserRepository) Save(ctx context.Context, user *domain.User) error {
	userKey := r.userKey(user.ID)
	nameKey := r.usernameKey(user.Username)

	var createdAt, updatedAt time.Time
	txf := func(tx *redis.Tx) error {
		owner, err := tx.Get(ctx, nameKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && owner != user.ID {
			return domain.ErrUsernameTaken
		}

		existing, err := tx.HMGet(ctx, userKey, "username", "created_at").Result()
		if err != nil {
			return err
		}
		previousName, _ := existing[0].(string)

		updatedAt = r.now().UTC()
		createdAt = updatedAt
		if raw, ok := existing[1].(string); ok && raw != "" {
			if createdAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
				return fmt.Errorf("parse created_at: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, userKey, map[string]interface{}{
				"id":                 user.ID,
				"username":           user.Username,
				"password_hash":      user.PasswordHash,
				"totp_secret":        user.TOTPSecret,
				"two_factor_enabled": strconv.FormatBool(user.TwoFactorEnabled),
				"created_at":         createdAt.Format(time.RFC3339Nano),
				"updated_at":         updatedAt.Format(time.RFC3339Nano),
			})
			pipe.Set(ctx, nameKey, user.ID, 0)
			if previousName != "" && previousName != user.Username {
				pipe.Del(ctx, r.usernameKey(previousName))
			}
			return nil
		})
		return err
	}

	for i := 0; i < redisSaveRetries; i++ {
		err := r.client.Watch(ctx, txf, nameKey, userKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		user.CreatedAt = createdAt
		user.UpdatedAt = updatedAt
		return nil
	}
	return fmt.Errorf("save user %s: %w", user.ID, redis.TxFailedErr)
}

func (r *redisUserRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	userKey := r.userKey(id)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, userKey, "password_hash").Result()
		if errors.Is(err, redis.Nil) {
			return domain.ErrStaleRecord
		}
		if err != nil {
			return err
		}
		if current != oldHash {
			return domain.ErrStaleRecord
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, userKey,
				"password_hash", newHash,
				"updated_at", r.now().UTC().Format(time.RFC3339Nano),
			)
			return nil
		})
		return err
	}

	for i := 0; i < redisSaveRetries; i++ {
		err := r.client.Watch(ctx, txf, userKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update password hash %s: %w", id, redis.TxFailedErr)
}

func (r *redisUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	fields, err := r.client.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return decodeRedisUser(fields)
}

func (r *redisUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	id, err := r.client.Get(ctx, r.usernameKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *redisUserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeRedisUser(fields map[string]string) (*domain.User, error) {
	enabled, err := strconv.ParseBool(fields["two_factor_enabled"])
	if err != nil {
		return nil, fmt.Errorf("parse two_factor_enabled: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &domain.User{
		ID:               fields["id"],
		Username:         fields["username"],
		PasswordHash:     fields["password_hash"],
		TOTPSecret:       fields["totp_secret"],
		TwoFactorEnabled: enabled,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}
