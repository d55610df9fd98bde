package accesstoken

import (
	"errors"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

// PasetoManager issues PASETO v4.public tokens signed with an Ed25519 key.
type PasetoManager struct {
	issuer    string
	audience  string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoManager builds a PasetoManager from the hex secret key in cfg.
func NewPasetoManager(cfg Config) (*PasetoManager, error) {
	if cfg.TTL <= 0 || cfg.Issuer == "" {
		return nil, ErrConfig
	}
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &PasetoManager{
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

// PublicKeyHex exports the verification key for other services.
func (m *PasetoManager) PublicKeyHex() string {
	return m.public.ExportHex()
}

// Issue signs a token for userID valid from now for the configured TTL.
func (m *PasetoManager) Issue(userID string, now time.Time) (AccessToken, error) {
	exp := now.Add(m.ttl)
	jti := uuid.NewString()

	tok := paseto.NewToken()
	tok.SetSubject(userID)
	tok.SetIssuer(m.issuer)
	if m.audience != "" {
		tok.SetAudience(m.audience)
	}
	tok.SetJti(jti)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)

	return AccessToken{Token: tok.V4Sign(m.secret, nil), ID: jti, ExpiresAt: exp}, nil
}

// Verify checks the signature and claims at now, allowing the configured clock skew.
func (m *PasetoManager) Verify(token string, now time.Time) (Claims, error) {
	// The default parser checks expiry against the wall clock; time rules are
	// applied explicitly against now instead.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))
	if m.audience != "" {
		p.AddRule(paseto.ForAudience(m.audience))
	}
	p.AddRule(validWithSkew(now, m.clockSkew))

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return Claims{}, ErrInvalidAccessToken
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrInvalidAccessToken
	}
	jti, err := parsed.GetJti()
	if err != nil || jti == "" {
		return Claims{}, ErrInvalidAccessToken
	}
	iss, _ := parsed.GetIssuer()
	aud, _ := parsed.GetAudience()
	exp, _ := parsed.GetExpiration()
	iat, _ := parsed.GetIssuedAt()

	return Claims{
		Subject:   sub,
		Issuer:    iss,
		Audience:  aud,
		ExpiresAt: exp,
		IssuedAt:  iat,
		ID:        jti,
	}, nil
}

var errTokenTime = errors.New("token not valid at this time")

// validWithSkew requires exp, iat and nbf and accepts them within skew of now.
func validWithSkew(now time.Time, skew time.Duration) paseto.Rule {
	return func(t paseto.Token) error {
		exp, err := t.GetExpiration()
		if err != nil {
			return err
		}
		iat, err := t.GetIssuedAt()
		if err != nil {
			return err
		}
		nbf, err := t.GetNotBefore()
		if err != nil {
			return err
		}
		switch {
		case !now.Add(-skew).Before(exp):
			return errTokenTime
		case now.Add(skew).Before(iat):
			return errTokenTime
		case now.Add(skew).Before(nbf):
			return errTokenTime
		}
		return nil
	}
}
