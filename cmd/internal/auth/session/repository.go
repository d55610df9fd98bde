package session

import (
	"context"

	"sessiond/cmd/security/token"

	"github.com/oklog/ulid/v2"
)

// Repository persists Session aggregates together with their token chains.
//
// Implementations must make Save atomic for the session row and all of its
// token rows, and must reject a second concurrent writer with ErrConflict.
type Repository interface {
	// FindActiveByUserID returns the user's sessions whose status is active.
	FindActiveByUserID(ctx context.Context, userID string) ([]*Session, error)

	// FindForRefresh returns the session owning a token with digest d, searching
	// the whole chain. It returns (nil, nil) when no token matches.
	FindForRefresh(ctx context.Context, d token.Digest) (*Session, error)

	// Save upserts s and its tokens, assigning ids to new entities.
	Save(ctx context.Context, s *Session) error
}

// newID returns a fresh ULID string.
func newID() string {
	return ulid.Make().String()
}

// prepareSave assigns ids to unsaved entities and links tokens to the session.
// The returned undo restores the unsaved state when the write fails, so a
// retried Save starts over cleanly.
func (s *Session) prepareSave() (undo func()) {
	wasNew := s.IsNew()
	var assigned, linked []*RefreshToken

	if wasNew {
		s.id = newID()
	}
	for i, t := range s.tokens {
		t.sessionID = s.id
		if t.IsNew() {
			t.id = newID()
			assigned = append(assigned, t)
		}
		// A rotation before the first save could not know its predecessor's id.
		if i > 0 && t.previousTokenID == "" {
			t.previousTokenID = s.tokens[i-1].id
			linked = append(linked, t)
		}
	}

	return func() {
		if wasNew {
			s.id = ""
			for _, t := range s.tokens {
				t.sessionID = ""
			}
		}
		for _, t := range assigned {
			t.id = ""
		}
		for _, t := range linked {
			t.previousTokenID = ""
		}
	}
}

// commitSave marks every entity saved and records the stored version.
func (s *Session) commitSave(version int64) {
	s.markSaved(s.id)
	for _, t := range s.tokens {
		if t.IsNew() {
			t.markSaved(t.id)
		}
		t.dirty = false
	}
	s.version = version
}

func (s *Session) activeTokenCount() int {
	n := 0
	for _, t := range s.tokens {
		if t.IsActive() {
			n++
		}
	}
	return n
}
