package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]memoryUser
}

type memoryUser struct {
	user User
	hash string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEmail: make(map[string]memoryUser)}
}

// CreateUser inserts a user keyed by normalized email.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	norm, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[norm]; ok {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	u := User{ID: id, Email: strings.TrimSpace(in.Email), EmailNorm: norm, CreatedAt: now}
	s.byEmail[norm] = memoryUser{user: u, hash: in.PasswordHash}
	return u, nil
}

// GetUserAuthByEmail looks a user up by normalized email.
func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mu, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	return UserAuth{ID: mu.user.ID, Email: mu.user.Email, PasswordHash: mu.hash}, nil
}
