package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/metrics"
)

// LogoutSession ends the caller's session identified by fp and the presented
// secret. Without a secret, or when nothing matches, it succeeds without
// revealing which sessions exist.
func (s *Service) LogoutSession(ctx context.Context, userID string, fp Fingerprint, presentedSecret string) error {
	presented := strings.TrimSpace(presentedSecret)
	if presented == "" || len(presented) > s.cfg.MaxSecretLength {
		s.metrics.Logout(metrics.ScopeSession, metrics.OutcomeNoop)
		return nil
	}
	now := s.clock.Now()

	var revoked *session.Session
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		active, err := s.sessions.FindActiveByUserID(ctx, userID)
		if err != nil {
			return err
		}
		sess := s.findForClient(active, fp, []byte(presented), now)
		if sess == nil {
			return nil
		}
		sess.Revoke(now, session.ReasonUserLogout)
		if err := s.sessions.Save(ctx, sess); err != nil {
			return err
		}
		revoked = sess
		return nil
	})
	if err != nil {
		s.metrics.Logout(metrics.ScopeSession, outcomeFor(err))
		return err
	}

	if revoked == nil {
		s.metrics.Logout(metrics.ScopeSession, metrics.OutcomeNoop)
		return nil
	}
	s.metrics.Logout(metrics.ScopeSession, metrics.OutcomeSuccess)
	s.log.Info("auth.logout.session", "user_id", userID, "session_id", revoked.ID(), "client_id", fp.ClientID)
	return nil
}

// LogoutAllSessions revokes every active session of userID. Each revoke is
// committed on its own; failures are joined and returned after all sessions
// were attempted, and revokes that did commit stay revoked.
func (s *Service) LogoutAllSessions(ctx context.Context, userID string) error {
	now := s.clock.Now()

	active, err := s.sessions.FindActiveByUserID(ctx, userID)
	if err != nil {
		s.metrics.Logout(metrics.ScopeAll, metrics.OutcomeError)
		return err
	}

	var errs []error
	for _, sess := range active {
		err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
			sess.Revoke(now, session.ReasonGlobalLogout)
			return s.sessions.Save(ctx, sess)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("revoke session %s: %w", sess.ID(), err))
		}
	}

	if len(errs) > 0 {
		s.metrics.Logout(metrics.ScopeAll, metrics.OutcomeError)
		s.log.Warn("auth.logout.all_partial",
			"user_id", userID,
			"sessions", len(active),
			"failed", len(errs),
		)
		return errors.Join(errs...)
	}

	s.metrics.Logout(metrics.ScopeAll, metrics.OutcomeSuccess)
	s.log.Info("auth.logout.all", "user_id", userID, "sessions", len(active))
	return nil
}
