package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/accesstoken"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/clock"
	"sessiond/cmd/internal/db"
	"sessiond/cmd/security/token"
)

// Users is the account lookup used by Login and Register.
type Users interface {
	CreateUser(ctx context.Context, in identity.CreateUserInput) (identity.User, error)
	GetUserAuthByEmail(ctx context.Context, email string) (identity.UserAuth, error)
}

// Passwords hashes and verifies encoded password hashes.
// password.Config satisfies it.
type Passwords interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) (bool, error)
}

// Digester digests and verifies refresh secrets. *token.Digester satisfies it.
type Digester interface {
	Digest(secret []byte) token.Digest
	Verify(secret []byte, want token.Digest) bool
}

// Recorder receives outcome counts. *metrics.Metrics satisfies it.
type Recorder interface {
	Login(outcome string)
	Refresh(outcome string)
	Logout(scope, outcome string)
}

// Deps are the collaborators of Service. Clock, Logger and Metrics are optional.
type Deps struct {
	Users     Users
	Passwords Passwords
	Sessions  session.Repository
	UoW       db.UnitOfWork
	Digester  Digester
	Tokens    accesstoken.Manager
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   Recorder
}

// Fingerprint identifies the calling client.
type Fingerprint struct {
	ClientID  string
	IP        string
	UserAgent string
}

// Result is returned by Login and Refresh.
type Result struct {
	SessionID       string
	UserID          string
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshSecret   string
	ExpiresAt       time.Time
}

// Service implements the session use cases.
type Service struct {
	cfg Config

	users     Users
	passwords Passwords
	sessions  session.Repository
	uow       db.UnitOfWork
	digester  Digester
	tokens    accesstoken.Manager
	clock     clock.Clock
	log       *slog.Logger
	metrics   Recorder

	// dummyHash is verified for unknown emails so both failure paths cost the same.
	dummyHash string
}

// New validates cfg and wires a Service.
func New(cfg Config, d Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Users == nil || d.Passwords == nil || d.Sessions == nil || d.UoW == nil || d.Digester == nil || d.Tokens == nil {
		return nil, errors.New("usecase: missing dependency")
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}

	secret, err := token.NewSecret(32)
	if err != nil {
		return nil, err
	}
	dummy, err := d.Passwords.Hash(secret)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:       cfg,
		users:     d.Users,
		passwords: d.Passwords,
		sessions:  d.Sessions,
		uow:       d.UoW,
		digester:  d.Digester,
		tokens:    d.Tokens,
		clock:     d.Clock,
		log:       d.Logger,
		metrics:   d.Metrics,
		dummyHash: dummy,
	}, nil
}

// issue signs an access token for a committed session.
func (s *Service) issue(sess *session.Session, secret string, now time.Time) (Result, error) {
	at, err := s.tokens.Issue(sess.UserID(), now)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SessionID:       sess.ID(),
		UserID:          sess.UserID(),
		AccessToken:     at.Token,
		AccessExpiresAt: at.ExpiresAt,
		RefreshSecret:   secret,
		ExpiresAt:       sess.ExpiresAt(),
	}, nil
}

// newSecret returns a fresh refresh secret and its digest.
func (s *Service) newSecret() (string, token.Digest, error) {
	secret, err := token.NewSecret(s.cfg.RefreshTokenBytes)
	if err != nil {
		return "", token.Digest{}, err
	}
	return secret, s.digester.Digest([]byte(secret)), nil
}

// findForClient returns the active session of fp.ClientID whose active token
// matches secret, skipping sessions already past expiry at now.
func (s *Service) findForClient(sessions []*session.Session, fp Fingerprint, secret []byte, now time.Time) *session.Session {
	for _, sess := range sessions {
		if sess.ClientID() != fp.ClientID || sess.IsExpired(now) {
			continue
		}
		if sess.HasActiveRefreshToken(secret, s.digester) {
			return sess
		}
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) Login(string)          {}
func (nopRecorder) Refresh(string)        {}
func (nopRecorder) Logout(string, string) {}
