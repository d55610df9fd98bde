package usecase

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ReusePolicy decides how far reuse detection reaches.
type ReusePolicy string

const (
	// ReusePolicySession ends only the session whose token was replayed.
	ReusePolicySession ReusePolicy = "session"
	// ReusePolicyUser also revokes every other active session of the user.
	ReusePolicyUser ReusePolicy = "user"
)

// Config controls session lifetime and refresh-secret generation.
type Config struct {
	// SessionTTL is the absolute session lifetime set at login. Rotation
	// never extends it.
	SessionTTL time.Duration

	// RefreshTokenBytes is the entropy of generated refresh secrets.
	RefreshTokenBytes int

	// MaxSecretLength bounds presented secrets before they are digested.
	MaxSecretLength int

	ReusePolicy ReusePolicy
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:        30 * 24 * time.Hour,
		RefreshTokenBytes: 32,
		MaxSecretLength:   512,
		ReusePolicy:       ReusePolicySession,
	}
}

// LoadConfigFromEnv loads use-case configuration from environment variables.
//
// Optional:
//   - SESSIOND_SESSION_TTL (Go duration)
//   - SESSIOND_REFRESH_TOKEN_BYTES (32..64)
//   - SESSIOND_REUSE_POLICY (session | user)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SESSIOND_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv("SESSIOND_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("SESSIOND_REUSE_POLICY")); v != "" {
		cfg.ReusePolicy = ReusePolicy(strings.ToLower(v))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg bounds.
func (c Config) Validate() error {
	switch {
	case c.SessionTTL < time.Minute:
		return ErrConfig
	case c.RefreshTokenBytes < 32 || c.RefreshTokenBytes > 64:
		return ErrConfig
	case c.MaxSecretLength < 64:
		return ErrConfig
	}
	switch c.ReusePolicy {
	case ReusePolicySession, ReusePolicyUser:
		return nil
	}
	return ErrConfig
}
