package usecase

import (
	"context"
	"errors"
	"strings"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/metrics"
)

// LoginInput is a login request. PresentedSecret is the refresh secret the
// client already holds, if any.
type LoginInput struct {
	Email           string
	Password        string
	Fingerprint     Fingerprint
	PresentedSecret string
}

// Login authenticates the user and returns tokens.
//
// When the client presents a secret that still matches the active token of one
// of its sessions, nothing is written: a new access token is issued and the
// same secret is returned. Otherwise a new session is started, and active
// sessions of the user that are past expiry are expired in the same unit of
// work.
func (s *Service) Login(ctx context.Context, in LoginInput) (Result, error) {
	now := s.clock.Now()

	user, err := s.authenticate(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.Login(metrics.OutcomeInvalidCredentials)
			s.log.Info("auth.login.invalid_credentials", "client_id", in.Fingerprint.ClientID, "ip", in.Fingerprint.IP)
		} else {
			s.metrics.Login(metrics.OutcomeError)
		}
		return Result{}, err
	}

	active, err := s.sessions.FindActiveByUserID(ctx, user.ID)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return Result{}, err
	}

	presented := strings.TrimSpace(in.PresentedSecret)
	if presented != "" && len(presented) <= s.cfg.MaxSecretLength {
		if sess := s.findForClient(active, in.Fingerprint, []byte(presented), now); sess != nil {
			res, err := s.issue(sess, presented, now)
			if err != nil {
				s.metrics.Login(metrics.OutcomeError)
				return Result{}, err
			}
			s.metrics.Login(metrics.OutcomeIdempotent)
			s.log.Info("auth.login.reused_session", "user_id", user.ID, "session_id", sess.ID(), "client_id", in.Fingerprint.ClientID)
			return res, nil
		}
	}

	// Sessions past expiry are still stored as active until something ends them.
	var stale []*session.Session
	for _, sess := range active {
		if sess.IsExpired(now) {
			stale = append(stale, sess)
		}
	}

	secret, digest, err := s.newSecret()
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return Result{}, err
	}
	sess, err := session.Start(session.StartParams{
		UserID:    user.ID,
		ClientID:  in.Fingerprint.ClientID,
		Now:       now,
		TTL:       s.cfg.SessionTTL,
		Digest:    digest,
		IP:        in.Fingerprint.IP,
		UserAgent: in.Fingerprint.UserAgent,
	})
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return Result{}, err
	}

	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		for _, old := range stale {
			if old.Expire(now) {
				if err := s.sessions.Save(ctx, old); err != nil {
					return err
				}
			}
		}
		return s.sessions.Save(ctx, sess)
	})
	if err != nil {
		s.metrics.Login(outcomeFor(err))
		return Result{}, err
	}

	res, err := s.issue(sess, secret, now)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return Result{}, err
	}
	s.metrics.Login(metrics.OutcomeSuccess)
	s.log.Info("auth.login.session_started",
		"user_id", user.ID,
		"session_id", sess.ID(),
		"client_id", in.Fingerprint.ClientID,
		"expired_sessions", len(stale),
	)
	return res, nil
}

// authenticate returns ErrInvalidCredentials for an unknown email and for a
// wrong password, spending one hash verification either way.
func (s *Service) authenticate(ctx context.Context, email, password string) (identity.UserAuth, error) {
	user, err := s.users.GetUserAuthByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			_, _ = s.passwords.Verify(s.dummyHash, password)
			return identity.UserAuth{}, ErrInvalidCredentials
		}
		return identity.UserAuth{}, err
	}

	ok, err := s.passwords.Verify(user.PasswordHash, password)
	if err != nil {
		s.log.Error("auth.login.bad_password_hash", "user_id", user.ID, "err", err)
		return identity.UserAuth{}, ErrInvalidCredentials
	}
	if !ok {
		return identity.UserAuth{}, ErrInvalidCredentials
	}
	return user, nil
}

// outcomeFor maps an error to a metrics outcome label.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, session.ErrRefreshTokenReuseDetected):
		return metrics.OutcomeReuseDetected
	case errors.Is(err, session.ErrSessionExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, session.ErrSessionNotActive):
		return metrics.OutcomeNotActive
	case errors.Is(err, session.ErrNoActiveRefreshToken):
		return metrics.OutcomeNoActiveToken
	case errors.Is(err, session.ErrInvalidSession):
		return metrics.OutcomeInvalidSession
	case errors.Is(err, session.ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrInvalidCredentials):
		return metrics.OutcomeInvalidCredentials
	}
	return metrics.OutcomeError
}
