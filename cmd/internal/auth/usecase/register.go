package usecase

import (
	"context"

	"sessiond/cmd/identity"
)

// Register creates an account. The password is validated and hashed before it
// reaches the store.
func (s *Service) Register(ctx context.Context, email, password string) (identity.User, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return identity.User{}, err
	}
	u, err := s.users.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Now:          s.clock.Now(),
	})
	if err != nil {
		return identity.User{}, err
	}
	s.log.Info("auth.register", "user_id", u.ID)
	return u, nil
}
