package session

import (
	"fmt"
	"strings"
	"time"

	"sessiond/cmd/security/token"
)

// Status is the lifecycle status of a Session. Every status other than
// StatusActive is terminal.
type Status string

const (
	StatusActive        Status = "active"
	StatusRevoked       Status = "revoked"
	StatusExpired       Status = "expired"
	StatusReuseDetected Status = "reuse_detected"
)

// Valid reports whether s is a known session status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRevoked, StatusExpired, StatusReuseDetected:
		return true
	}
	return false
}

// End reasons recorded on a session when it leaves StatusActive.
const (
	ReasonUserLogout    = "user_logout"
	ReasonGlobalLogout  = "global_logout"
	ReasonNoActiveToken = "no_active_token"
	ReasonExpired       = "expired"
	ReasonReuseDetected = "reuse_detected"
	ReasonReuseCascade  = "reuse_cascade"
)

// Verifier checks a presented secret against a stored digest.
// *token.Digester satisfies it.
type Verifier interface {
	Verify(secret []byte, want token.Digest) bool
}

// Session is the aggregate root owning a refresh-token rotation chain.
//
// A Session is not safe for concurrent use; each request loads its own copy
// and storage serializes writers.
type Session struct {
	ref

	userID   string
	clientID string
	status   Status

	createdAt  time.Time
	expiresAt  time.Time
	lastUsedAt time.Time

	ip        string
	userAgent string

	endedAt   time.Time
	endReason string

	version int64
	tokens  []*RefreshToken
}

// StartParams describes a fresh login.
type StartParams struct {
	UserID    string
	ClientID  string
	Now       time.Time
	TTL       time.Duration
	Digest    token.Digest
	IP        string
	UserAgent string
}

// Start creates an active session expiring at Now+TTL with one fresh active token.
func Start(p StartParams) (*Session, error) {
	switch {
	case strings.TrimSpace(p.UserID) == "":
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	case strings.TrimSpace(p.ClientID) == "":
		return nil, fmt.Errorf("%w: client id is required", ErrInvalidArgument)
	case p.TTL <= 0:
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidArgument)
	case p.Digest.IsZero():
		return nil, fmt.Errorf("%w: digest is required", ErrInvalidArgument)
	case p.Now.IsZero():
		return nil, fmt.Errorf("%w: now is required", ErrInvalidArgument)
	}

	s := &Session{
		userID:     p.UserID,
		clientID:   p.ClientID,
		status:     StatusActive,
		createdAt:  p.Now,
		expiresAt:  p.Now.Add(p.TTL),
		lastUsedAt: p.Now,
		ip:         p.IP,
		userAgent:  p.UserAgent,
	}
	s.tokens = append(s.tokens, NewRefreshToken(NewTokenParams{
		UserID:    p.UserID,
		Digest:    p.Digest,
		Now:       p.Now,
		TTL:       p.TTL,
		IP:        p.IP,
		UserAgent: p.UserAgent,
	}))
	return s, nil
}

// SessionRecord is the storage shape of a Session, without its tokens.
type SessionRecord struct {
	ID         string
	UserID     string
	ClientID   string
	Status     Status
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time
	IP         string
	UserAgent  string
	EndedAt    time.Time
	EndReason  string
	Version    int64
}

// HydrateSession rebuilds a persisted session and its chain in issue order.
func HydrateSession(r SessionRecord, tokens []TokenRecord) *Session {
	s := &Session{
		userID:     r.UserID,
		clientID:   r.ClientID,
		status:     r.Status,
		createdAt:  r.CreatedAt,
		expiresAt:  r.ExpiresAt,
		lastUsedAt: r.LastUsedAt,
		ip:         r.IP,
		userAgent:  r.UserAgent,
		endedAt:    r.EndedAt,
		endReason:  r.EndReason,
		version:    r.Version,
		tokens:     make([]*RefreshToken, 0, len(tokens)),
	}
	if r.ID != "" {
		s.markSaved(r.ID)
	}
	for _, tr := range tokens {
		s.tokens = append(s.tokens, HydrateRefreshToken(tr))
	}
	return s
}

// Record returns the storage shape of s.
func (s *Session) Record() SessionRecord {
	return SessionRecord{
		ID:         s.id,
		UserID:     s.userID,
		ClientID:   s.clientID,
		Status:     s.status,
		CreatedAt:  s.createdAt,
		ExpiresAt:  s.expiresAt,
		LastUsedAt: s.lastUsedAt,
		IP:         s.ip,
		UserAgent:  s.userAgent,
		EndedAt:    s.endedAt,
		EndReason:  s.endReason,
		Version:    s.version,
	}
}

func (s *Session) UserID() string        { return s.userID }
func (s *Session) ClientID() string      { return s.clientID }
func (s *Session) Status() Status        { return s.status }
func (s *Session) CreatedAt() time.Time  { return s.createdAt }
func (s *Session) ExpiresAt() time.Time  { return s.expiresAt }
func (s *Session) LastUsedAt() time.Time { return s.lastUsedAt }
func (s *Session) IP() string            { return s.ip }
func (s *Session) UserAgent() string     { return s.userAgent }
func (s *Session) EndedAt() time.Time    { return s.endedAt }
func (s *Session) EndReason() string     { return s.endReason }

// Version is the optimistic-concurrency counter of the stored row.
// It is 0 for a session that has never been saved.
func (s *Session) Version() int64 { return s.version }

// IsActive reports status == active.
func (s *Session) IsActive() bool { return s.status == StatusActive }

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool { return !now.Before(s.expiresAt) }

// Tokens returns the chain in issue order. The slice is a copy; the tokens are
// shared and only expose read accessors.
func (s *Session) Tokens() []*RefreshToken {
	out := make([]*RefreshToken, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// ActiveToken returns the single active token, or nil.
func (s *Session) ActiveToken() *RefreshToken {
	for _, t := range s.tokens {
		if t.IsActive() {
			return t
		}
	}
	return nil
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.lastUsedAt = now
}

// Revoke ends an active session with reason and retires its active token.
// On a session that already left StatusActive it does nothing, so the first
// end reason and timestamp are kept.
func (s *Session) Revoke(now time.Time, reason string) {
	if s.status != StatusActive {
		return
	}
	s.end(StatusRevoked, now, reason)
	if t := s.ActiveToken(); t != nil {
		t.markRevoked()
	}
}

// Expire ends an active session whose expiry has passed at now and marks its
// active token expired. It reports whether anything changed.
func (s *Session) Expire(now time.Time) bool {
	if s.status != StatusActive || !s.IsExpired(now) {
		return false
	}
	s.end(StatusExpired, now, ReasonExpired)
	if t := s.ActiveToken(); t != nil {
		t.markExpired()
	}
	return true
}

// HasActiveRefreshToken reports whether the session is active and secret
// verifies against its active token. It never mutates the session.
func (s *Session) HasActiveRefreshToken(secret []byte, v Verifier) bool {
	if s.status != StatusActive {
		return false
	}
	t := s.ActiveToken()
	if t == nil {
		return false
	}
	return v.Verify(secret, t.digest)
}

// RotateToken retires the active token and appends a new one carrying newDigest.
//
// The checks run in a fixed order and the first failing one ends the call:
// a terminal session, a missing active token, expiry at now, and a secret that
// does not verify. The last three also end the session, so the caller must save
// the aggregate even when an error is returned.
func (s *Session) RotateToken(secret []byte, newDigest token.Digest, v Verifier, now time.Time) error {
	if s.status != StatusActive {
		return s.stateErr(ErrSessionNotActive)
	}

	active := s.ActiveToken()
	if active == nil {
		s.Revoke(now, ReasonNoActiveToken)
		return s.stateErr(ErrNoActiveRefreshToken)
	}

	if s.IsExpired(now) {
		s.end(StatusExpired, now, ReasonExpired)
		active.markRevoked()
		return s.stateErr(ErrSessionExpired)
	}

	if !v.Verify(secret, active.digest) {
		s.end(StatusReuseDetected, now, ReasonReuseDetected)
		active.markReused()
		return s.stateErr(ErrRefreshTokenReuseDetected)
	}

	if newDigest.IsZero() {
		return fmt.Errorf("%w: new digest is required", ErrInvalidArgument)
	}

	active.markRotated(now)
	s.tokens = append(s.tokens, NewRefreshToken(NewTokenParams{
		SessionID:       s.id,
		UserID:          s.userID,
		Digest:          newDigest,
		Now:             now,
		TTL:             s.expiresAt.Sub(now).Truncate(time.Second),
		IP:              s.ip,
		UserAgent:       s.userAgent,
		PreviousTokenID: active.ID(),
	}))
	s.Touch(now)
	return nil
}

func (s *Session) end(status Status, now time.Time, reason string) {
	s.status = status
	s.endedAt = now
	s.endReason = reason
}

func (s *Session) stateErr(kind error) error {
	return StateError{SessionID: s.id, Kind: kind}
}
