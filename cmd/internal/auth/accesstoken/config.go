package accesstoken

import (
	"os"
	"strings"
	"time"
)

// Format selects the access-token wire format.
type Format string

const (
	FormatJWT    Format = "jwt"
	FormatPaseto Format = "paseto"
)

// MinJWTKeyBytes is the smallest accepted HS256 signing key.
const MinJWTKeyBytes = 32

// Config is the access-token configuration.
type Config struct {
	Format Format

	// Issuer and Audience are written into every token and required on verify.
	Issuer   string
	Audience string

	// TTL is the access-token lifetime.
	TTL time.Duration

	// ClockSkew is the verification leeway for exp/nbf/iat.
	ClockSkew time.Duration

	// JWTSigningKey is the HS256 key. Used when Format is FormatJWT.
	JWTSigningKey []byte

	// PasetoV4SecretKeyHex is the hex Ed25519 secret key. Used when Format is FormatPaseto.
	PasetoV4SecretKeyHex string
}

// DefaultConfig returns defaults without key material.
func DefaultConfig() Config {
	return Config{
		Format:    FormatJWT,
		Issuer:    "sessiond",
		Audience:  "sessiond-api",
		TTL:       15 * time.Minute,
		ClockSkew: 30 * time.Second,
	}
}

// LoadConfigFromEnv loads access-token configuration from environment variables.
//
// Optional:
//   - SESSIOND_ACCESS_TOKEN_FORMAT (jwt | paseto, default jwt)
//   - SESSIOND_AUTH_ISSUER
//   - SESSIOND_AUTH_AUDIENCE
//   - SESSIOND_AUTH_ACCESS_TTL
//   - SESSIOND_AUTH_CLOCK_SKEW
//
// Required for the selected format:
//   - SESSIOND_JWT_SIGNING_KEY (jwt, at least 32 bytes)
//   - SESSIOND_PASETO_V4_SECRET_KEY_HEX (paseto)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("SESSIOND_ACCESS_TOKEN_FORMAT")); v != "" {
		cfg.Format = Format(strings.ToLower(v))
	}
	if v := os.Getenv("SESSIOND_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("SESSIOND_AUTH_AUDIENCE"); v != "" {
		cfg.Audience = v
	}
	if v := os.Getenv("SESSIOND_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}
	if v := os.Getenv("SESSIOND_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.JWTSigningKey = []byte(os.Getenv("SESSIOND_JWT_SIGNING_KEY"))
	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("SESSIOND_PASETO_V4_SECRET_KEY_HEX"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg for the selected format.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" || c.TTL <= 0 || c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute {
		return ErrConfig
	}
	switch c.Format {
	case FormatJWT:
		if len(c.JWTSigningKey) < MinJWTKeyBytes {
			return ErrConfig
		}
	case FormatPaseto:
		if c.PasetoV4SecretKeyHex == "" {
			return ErrConfig
		}
	default:
		return ErrConfig
	}
	return nil
}
