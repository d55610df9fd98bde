package accesstoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTManager issues HS256 JWTs carrying sub, iss, aud, exp, iat, nbf and jti.
type JWTManager struct {
	key       []byte
	issuer    string
	audience  string
	ttl       time.Duration
	clockSkew time.Duration
}

// NewJWTManager builds a JWTManager from cfg. The signing key must be at least
// MinJWTKeyBytes long.
func NewJWTManager(cfg Config) (*JWTManager, error) {
	if len(cfg.JWTSigningKey) < MinJWTKeyBytes || cfg.TTL <= 0 || cfg.Issuer == "" {
		return nil, ErrConfig
	}
	key := make([]byte, len(cfg.JWTSigningKey))
	copy(key, cfg.JWTSigningKey)

	return &JWTManager{
		key:       key,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
	}, nil
}

// Issue signs a token for userID valid from now for the configured TTL.
func (m *JWTManager) Issue(userID string, now time.Time) (AccessToken, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    m.issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify parses token and checks signature, algorithm, issuer, audience and
// time claims at now, allowing the configured clock skew.
func (m *JWTManager) Verify(token string, now time.Time) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var rc jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidAccessToken
	}
	if rc.Subject == "" || rc.ID == "" || rc.IssuedAt == nil {
		return Claims{}, ErrInvalidAccessToken
	}

	c := Claims{
		Subject:   rc.Subject,
		Issuer:    rc.Issuer,
		ExpiresAt: rc.ExpiresAt.Time,
		IssuedAt:  rc.IssuedAt.Time,
		ID:        rc.ID,
	}
	if len(rc.Audience) > 0 {
		c.Audience = rc.Audience[0]
	}
	return c, nil
}
