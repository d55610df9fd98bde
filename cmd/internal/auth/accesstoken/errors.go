package accesstoken

import "errors"

var (
	// ErrInvalidAccessToken is returned by Verify for any token that fails
	// signature, format, issuer, audience or time checks.
	ErrInvalidAccessToken = errors.New("invalid access token")

	// ErrConfig is returned when the access-token configuration is invalid.
	ErrConfig = errors.New("invalid access token configuration")
)
