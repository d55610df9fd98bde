package usecase

import "errors"

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
// password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrConfig is returned when the use-case configuration is invalid.
var ErrConfig = errors.New("invalid session configuration")
