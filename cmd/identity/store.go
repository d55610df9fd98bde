package identity

import (
	"context"
	"time"
)

// User is a registered account.
type User struct {
	ID        string
	Email     string
	EmailNorm string
	CreatedAt time.Time
}

// UserAuth is the credential view used by login.
type UserAuth struct {
	ID           string
	Email        string
	PasswordHash string
}

// CreateUserInput describes a registration. PasswordHash is an already
// encoded hash; the plain password never reaches the store.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Now          time.Time
}

// Store is the user persistence boundary.
type Store interface {
	// CreateUser inserts a user. A duplicate normalized email is a ConflictError.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// GetUserAuthByEmail looks a user up by normalized email.
	// A missing user is a NotFoundError.
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
}

// validateCreate normalizes in and returns the normalized email.
func validateCreate(op string, in CreateUserInput) (string, error) {
	if !ValidEmail(in.Email) {
		return "", OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid email"}
	}
	if in.PasswordHash == "" {
		return "", OpError{Op: op, Kind: ErrInvalidInput, Msg: "password hash is required"}
	}
	return NormalizeEmail(in.Email), nil
}
