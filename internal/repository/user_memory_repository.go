package repository

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/twofa-auth-service/internal/domain"
)

type memoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]domain.User
	byUsername map[string]string
	now        func() time.Time
}

// NewMemoryUserRepository returns a process-local store for development and tests.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byID:       make(map[string]domain.User),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

func (r *memoryUserRepository) Save(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byUsername[user.Username]; ok && owner != user.ID {
		return domain.ErrUsernameTaken
	}

	now := r.now().UTC()
	record := *user
	record.UpdatedAt = now
	if prev, ok := r.byID[user.ID]; ok {
		record.CreatedAt = prev.CreatedAt
		if prev.Username != user.Username {
			delete(r.byUsername, prev.Username)
		}
	} else {
		record.CreatedAt = now
	}

	r.byID[record.ID] = record
	r.byUsername[record.Username] = record.ID
	user.CreatedAt = record.CreatedAt
	user.UpdatedAt = record.UpdatedAt
	return nil
}

func (r *memoryUserRepository) UpdatePasswordHash(_ context.Context, id, oldHash, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byID[id]
	if !ok || record.PasswordHash != oldHash {
		return domain.ErrStaleRecord
	}
	record.PasswordHash = newHash
	record.UpdatedAt = r.now().UTC()
	r.byID[id] = record
	return nil
}

func (r *memoryUserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &user, nil
}

func (r *memoryUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byUsername[username]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *memoryUserRepository) Ping(context.Context) error {
	return nil
}
