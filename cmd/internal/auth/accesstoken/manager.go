package accesstoken

import "time"

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  string
	ExpiresAt time.Time
	IssuedAt  time.Time
	ID        string
}

// AccessToken is a freshly issued token.
type AccessToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Manager issues and verifies access tokens. Implementations are safe for concurrent use.
type Manager interface {
	Issue(userID string, now time.Time) (AccessToken, error)
	Verify(token string, now time.Time) (Claims, error)
}

// New returns the Manager selected by cfg.Format.
func New(cfg Config) (Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Format {
	case FormatPaseto:
		return NewPasetoManager(cfg)
	default:
		return NewJWTManager(cfg)
	}
}
