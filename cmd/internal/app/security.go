package app

import (
	"errors"
	"fmt"

	"sessiond/cmd/internal/auth/accesstoken"
	"sessiond/cmd/security/password"
	"sessiond/cmd/security/token"
)

// security holds the key material and policies built from the environment.
type security struct {
	digester  *token.Digester
	tokens    accesstoken.Manager
	passwords password.Config
}

// ValidateSecurityConfig enforces the security policy at startup.
// There is no fallback to an unkeyed digest or a generated signing key.
func ValidateSecurityConfig() error {
	_, err := loadSecurity()
	return err
}

func loadSecurity() (security, error) {
	digester, err := token.NewDigesterFromEnv()
	if err != nil {
		switch {
		case errors.Is(err, token.ErrKeyMissing):
			return security{}, fmt.Errorf("security policy: %s is missing", token.KeyEnv)
		case errors.Is(err, token.ErrKeyTooShort):
			return security{}, fmt.Errorf("security policy: %s is too short (min %d bytes)", token.KeyEnv, token.MinKeyBytes)
		case errors.Is(err, token.ErrUnsupportedAlgorithm):
			return security{}, fmt.Errorf("security policy: %s names an unsupported algorithm", token.AlgorithmEnv)
		default:
			return security{}, err
		}
	}

	atCfg, err := accesstoken.LoadConfigFromEnv()
	if err != nil {
		return security{}, fmt.Errorf("security policy: access token config: %w", err)
	}
	tokens, err := accesstoken.New(atCfg)
	if err != nil {
		return security{}, fmt.Errorf("security policy: access token manager: %w", err)
	}

	pw, err := password.FromEnv()
	if err != nil {
		return security{}, fmt.Errorf("security policy: password config: %w", err)
	}

	return security{digester: digester, tokens: tokens, passwords: pw}, nil
}
