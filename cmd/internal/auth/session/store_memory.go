package session

import (
	"context"
	"sort"
	"sync"

	"sessiond/cmd/security/token"
)

// MemoryRepository is an in-process Repository for development and tests.
//
// It stores records rather than live aggregates, so callers never share
// mutable state with the store or with each other.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]memoryRow
	byDigest map[string]string // digest key -> session id
}

type memoryRow struct {
	session SessionRecord
	tokens  []TokenRecord
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]memoryRow),
		byDigest: make(map[string]string),
	}
}

// FindActiveByUserID returns the user's active sessions ordered by creation time.
func (m *MemoryRepository) FindActiveByUserID(ctx context.Context, userID string) ([]*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for _, row := range m.sessions {
		if row.session.UserID == userID && row.session.Status == StatusActive {
			out = append(out, row.hydrate())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out, nil
}

// FindForRefresh resolves d through the digest index.
func (m *MemoryRepository) FindForRefresh(ctx context.Context, d token.Digest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.IsZero() {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byDigest[digestKey(d)]
	if !ok {
		return nil, nil
	}
	row, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return row.hydrate(), nil
}

// Save stores s if its version still matches the stored one.
func (m *MemoryRepository) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return StoreError{Op: "session.save", Err: ErrInvalidArgument}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wasNew := s.IsNew()
	undo := s.prepareSave()

	if err := m.checkWrite(s, wasNew); err != nil {
		undo()
		return StoreError{Op: "session.save", Err: err}
	}

	version := s.version + 1
	row := memoryRow{session: s.Record(), tokens: make([]TokenRecord, 0, len(s.tokens))}
	row.session.Version = version
	for _, t := range s.tokens {
		rec := t.Record()
		row.tokens = append(row.tokens, rec)
		m.byDigest[digestKey(rec.Digest)] = s.id
	}
	m.sessions[s.id] = row

	s.commitSave(version)
	return nil
}

func (m *MemoryRepository) checkWrite(s *Session, wasNew bool) error {
	if s.activeTokenCount() > 1 {
		return ErrConflict
	}

	stored, exists := m.sessions[s.id]
	switch {
	case wasNew && exists:
		return ErrConflict
	case !wasNew && !exists:
		return ErrConflict
	case exists && stored.session.Version != s.version:
		return ErrConflict
	}

	for _, t := range s.tokens {
		if owner, ok := m.byDigest[digestKey(t.digest)]; ok && owner != s.id {
			return ErrConflict
		}
	}
	return nil
}

func (r memoryRow) hydrate() *Session {
	return HydrateSession(r.session, r.tokens)
}

func digestKey(d token.Digest) string {
	return d.Algorithm + ":" + string(d.Value)
}
