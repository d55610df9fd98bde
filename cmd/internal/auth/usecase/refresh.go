package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/metrics"
)

// Refresh rotates the presented secret and returns a new one with a fresh
// access token.
//
// A rotation that fails inside the aggregate (expired, reuse, no active token)
// still commits the resulting terminal state before the error is returned.
// With ReusePolicyUser, reuse also revokes the user's other sessions once that
// state has committed; a failed cascade is logged and never replaces the reuse
// error.
func (s *Service) Refresh(ctx context.Context, fp Fingerprint, presentedSecret string) (Result, error) {
	now := s.clock.Now()

	presented := strings.TrimSpace(presentedSecret)
	if presented == "" || len(presented) > s.cfg.MaxSecretLength {
		err := session.InvalidSessionError{Reason: session.ReasonNotFound}
		s.metrics.Refresh(outcomeFor(err))
		return Result{}, err
	}
	digest := s.digester.Digest([]byte(presented))

	secret, newDigest, err := s.newSecret()
	if err != nil {
		s.metrics.Refresh(metrics.OutcomeError)
		return Result{}, err
	}

	var (
		sess      *session.Session
		domainErr error
	)
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		found, err := s.sessions.FindForRefresh(ctx, digest)
		if err != nil {
			return err
		}
		if found == nil {
			domainErr = session.InvalidSessionError{Reason: session.ReasonNotFound}
			return nil
		}
		sess = found
		if found.ClientID() != fp.ClientID {
			domainErr = session.InvalidSessionError{Reason: session.ReasonOtherDevice}
			return nil
		}

		rotateErr := found.RotateToken([]byte(presented), newDigest, s.digester, now)
		if rotateErr != nil && !session.IsUnauthorized(rotateErr) {
			return rotateErr
		}
		domainErr = rotateErr

		if errors.Is(rotateErr, session.ErrSessionNotActive) {
			return nil
		}
		return s.sessions.Save(ctx, found)
	})
	if err != nil {
		s.metrics.Refresh(outcomeFor(err))
		return Result{}, err
	}

	if domainErr != nil {
		cascaded := 0
		if errors.Is(domainErr, session.ErrRefreshTokenReuseDetected) && s.cfg.ReusePolicy == ReusePolicyUser {
			var cascadeErr error
			cascaded, cascadeErr = s.revokeOthers(ctx, sess, now)
			if cascadeErr != nil {
				s.log.Error("auth.refresh.reuse_cascade_partial",
					"session_id", sess.ID(),
					"user_id", sess.UserID(),
					"revoked", cascaded,
					"err", cascadeErr,
				)
			}
		}
		s.metrics.Refresh(outcomeFor(domainErr))
		s.logRefreshFailure(sess, fp, domainErr, cascaded)
		return Result{}, domainErr
	}

	res, err := s.issue(sess, secret, now)
	if err != nil {
		s.metrics.Refresh(metrics.OutcomeError)
		return Result{}, err
	}
	s.metrics.Refresh(metrics.OutcomeSuccess)
	return res, nil
}

// revokeOthers revokes every other active session of the owner of sess. It
// runs after the reuse-detected state of sess has committed; each revoke is
// its own unit of work and failures are joined. It returns how many sessions
// were revoked.
func (s *Service) revokeOthers(ctx context.Context, sess *session.Session, now time.Time) (int, error) {
	active, err := s.sessions.FindActiveByUserID(ctx, sess.UserID())
	if err != nil {
		return 0, err
	}

	var errs []error
	n := 0
	for _, other := range active {
		if other.ID() == sess.ID() {
			continue
		}
		err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
			other.Revoke(now, session.ReasonReuseCascade)
			return s.sessions.Save(ctx, other)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("revoke session %s: %w", other.ID(), err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func (s *Service) logRefreshFailure(sess *session.Session, fp Fingerprint, err error, cascaded int) {
	attrs := []any{"client_id", fp.ClientID, "ip", fp.IP, "err", err}
	if sess != nil {
		attrs = append(attrs, "session_id", sess.ID(), "user_id", sess.UserID())
	}

	switch {
	case errors.Is(err, session.ErrRefreshTokenReuseDetected):
		s.log.Warn("auth.refresh.reuse_detected", append(attrs, "cascaded_sessions", cascaded)...)
	case errors.Is(err, session.ErrInvalidSession):
		s.log.Info("auth.refresh.invalid_session", attrs...)
	default:
		s.log.Info("auth.refresh.rejected", attrs...)
	}
}
