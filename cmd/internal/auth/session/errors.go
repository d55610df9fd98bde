package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotActive is returned when rotating a session that already reached a terminal status.
	ErrSessionNotActive = errors.New("session not active")

	// ErrNoActiveRefreshToken is returned when an active session owns no active token.
	// The session is revoked as a side effect.
	ErrNoActiveRefreshToken = errors.New("no active refresh token")

	// ErrSessionExpired is returned when rotating at or after the session expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrRefreshTokenReuseDetected is returned when the presented secret does not
	// match the active token of an otherwise valid session.
	ErrRefreshTokenReuseDetected = errors.New("refresh token reuse detected")

	// ErrInvalidSession is returned when no session matches a presented secret or the
	// session belongs to another client.
	ErrInvalidSession = errors.New("invalid session")

	// ErrConflict is returned by Save when a concurrent writer already changed the session.
	ErrConflict = errors.New("session write conflict")

	// ErrInvalidArgument is returned for malformed constructor input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// InvalidSession reasons.
const (
	ReasonNotFound    = "not found"
	ReasonOtherDevice = "other device"
)

// InvalidSessionError carries the diagnostic reason behind ErrInvalidSession.
// The reason is for logs; callers should not echo it to clients.
type InvalidSessionError struct {
	Reason string
}

func (e InvalidSessionError) Error() string {
	if e.Reason == "" {
		return ErrInvalidSession.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidSession.Error(), e.Reason)
}

func (e InvalidSessionError) Unwrap() error { return ErrInvalidSession }

// StateError reports a failed state transition on a specific session.
// Kind is one of the session-state sentinels above.
type StateError struct {
	SessionID string
	Kind      error
}

func (e StateError) Error() string {
	if e.SessionID == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("session %s: %v", e.SessionID, e.Kind)
}

func (e StateError) Unwrap() error { return e.Kind }

// StoreError wraps a persistence failure with the repository operation name.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e StoreError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a session-state failure that a caller
// should surface as "unauthorized" rather than as a server error.
func IsUnauthorized(err error) bool {
	switch {
	case errors.Is(err, ErrSessionNotActive),
		errors.Is(err, ErrNoActiveRefreshToken),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrRefreshTokenReuseDetected),
		errors.Is(err, ErrInvalidSession):
		return true
	}
	return false
}
