package token

import "errors"

// Public, stable errors for callers.
var (
	ErrUnsupportedAlgorithm = errors.New("token digest algorithm unsupported")
	ErrKeyMissing           = errors.New("token digest key missing")
	ErrKeyTooShort          = errors.New("token digest key too short")
)
