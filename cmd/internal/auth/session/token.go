package session

import (
	"time"

	"sessiond/cmd/security/token"
)

// TokenStatus is the lifecycle status of one rotation-chain link.
type TokenStatus string

const (
	TokenActive        TokenStatus = "active"
	TokenRotated       TokenStatus = "rotated"
	TokenRevoked       TokenStatus = "revoked"
	TokenExpired       TokenStatus = "expired"
	TokenReuseDetected TokenStatus = "reuse_detected"
)

// Valid reports whether s is a known token status.
func (s TokenStatus) Valid() bool {
	switch s {
	case TokenActive, TokenRotated, TokenRevoked, TokenExpired, TokenReuseDetected:
		return true
	}
	return false
}

// RefreshToken is one link of a session's rotation chain.
//
// Only the owning Session changes a token's status; the transition methods are
// unexported for that reason.
type RefreshToken struct {
	ref

	sessionID string
	userID    string
	digest    token.Digest
	status    TokenStatus

	issuedAt   time.Time
	expiresAt  time.Time
	lastUsedAt time.Time

	ip              string
	userAgent       string
	previousTokenID string

	// dirty is set by transitions and cleared on save.
	dirty bool
}

// NewTokenParams describes a fresh chain link.
type NewTokenParams struct {
	SessionID       string
	UserID          string
	Digest          token.Digest
	Now             time.Time
	TTL             time.Duration
	IP              string
	UserAgent       string
	PreviousTokenID string
}

// NewRefreshToken returns an active token expiring at Now+TTL.
func NewRefreshToken(p NewTokenParams) *RefreshToken {
	return &RefreshToken{
		sessionID:       p.SessionID,
		userID:          p.UserID,
		digest:          cloneDigest(p.Digest),
		status:          TokenActive,
		issuedAt:        p.Now,
		expiresAt:       p.Now.Add(p.TTL),
		lastUsedAt:      p.Now,
		ip:              p.IP,
		userAgent:       p.UserAgent,
		previousTokenID: p.PreviousTokenID,
	}
}

// TokenRecord is the storage shape of a RefreshToken.
type TokenRecord struct {
	ID              string
	SessionID       string
	UserID          string
	Digest          token.Digest
	Status          TokenStatus
	IssuedAt        time.Time
	ExpiresAt       time.Time
	LastUsedAt      time.Time
	IP              string
	UserAgent       string
	PreviousTokenID string
}

// HydrateRefreshToken rebuilds a persisted token as stored, without re-deriving expiry.
func HydrateRefreshToken(r TokenRecord) *RefreshToken {
	t := &RefreshToken{
		sessionID:       r.SessionID,
		userID:          r.UserID,
		digest:          cloneDigest(r.Digest),
		status:          r.Status,
		issuedAt:        r.IssuedAt,
		expiresAt:       r.ExpiresAt,
		lastUsedAt:      r.LastUsedAt,
		ip:              r.IP,
		userAgent:       r.UserAgent,
		previousTokenID: r.PreviousTokenID,
	}
	if r.ID != "" {
		t.markSaved(r.ID)
	}
	return t
}

// Record returns the storage shape of t.
func (t *RefreshToken) Record() TokenRecord {
	return TokenRecord{
		ID:              t.id,
		SessionID:       t.sessionID,
		UserID:          t.userID,
		Digest:          cloneDigest(t.digest),
		Status:          t.status,
		IssuedAt:        t.issuedAt,
		ExpiresAt:       t.expiresAt,
		LastUsedAt:      t.lastUsedAt,
		IP:              t.ip,
		UserAgent:       t.userAgent,
		PreviousTokenID: t.previousTokenID,
	}
}

func (t *RefreshToken) SessionID() string       { return t.sessionID }
func (t *RefreshToken) UserID() string          { return t.userID }
func (t *RefreshToken) Digest() token.Digest    { return cloneDigest(t.digest) }
func (t *RefreshToken) Status() TokenStatus     { return t.status }
func (t *RefreshToken) IssuedAt() time.Time     { return t.issuedAt }
func (t *RefreshToken) ExpiresAt() time.Time    { return t.expiresAt }
func (t *RefreshToken) LastUsedAt() time.Time   { return t.lastUsedAt }
func (t *RefreshToken) IP() string              { return t.ip }
func (t *RefreshToken) UserAgent() string       { return t.userAgent }
func (t *RefreshToken) PreviousTokenID() string { return t.previousTokenID }

// IsActive reports status == active.
func (t *RefreshToken) IsActive() bool { return t.status == TokenActive }

// Transitions are one-way; calling one on a retired token just overwrites the
// status. The aggregate guarantees legal call order.

func (t *RefreshToken) markRotated(now time.Time) {
	t.setStatus(TokenRotated)
	t.lastUsedAt = now
}

func (t *RefreshToken) markRevoked() { t.setStatus(TokenRevoked) }

func (t *RefreshToken) markReused() { t.setStatus(TokenReuseDetected) }

func (t *RefreshToken) markExpired() { t.setStatus(TokenExpired) }

func (t *RefreshToken) setStatus(st TokenStatus) {
	t.status = st
	t.dirty = true
}

func cloneDigest(d token.Digest) token.Digest {
	if d.Value == nil {
		return token.Digest{Algorithm: d.Algorithm}
	}
	v := make([]byte, len(d.Value))
	copy(v, d.Value)
	return token.Digest{Value: v, Algorithm: d.Algorithm}
}
