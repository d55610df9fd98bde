package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sessiond/cmd/internal/db"
	"sessiond/cmd/security/token"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository over the sessions and
// refresh_tokens tables.
//
// When the context carries a transaction from db.TxManager, every statement
// joins it and FindForRefresh locks the session row. Otherwise Save opens a
// short transaction of its own.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the repository.
type PostgresOption func(*PostgresRepository) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the session tables (default "sessiond").
func WithSchema(schema string) PostgresOption {
	return func(r *PostgresRepository) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier %q", schema)
		}
		r.schema = schema
		return nil
	}
}

// NewPostgresRepository returns a repository over pool. The pool is owned by the caller.
func NewPostgresRepository(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresRepository, error) {
	r := &PostgresRepository{pool: pool, schema: "sessiond"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.pool == nil {
		return nil, errors.New("session: nil pool")
	}
	return r, nil
}

func (r *PostgresRepository) table(name string) string {
	return pgx.Identifier{r.schema, name}.Sanitize()
}

const sessionColumns = `s.id, s.user_id, s.client_id, s.status, s.created_at, s.expires_at, s.last_used_at,
	s.ip, s.user_agent, s.ended_at, s.end_reason, s.version`

const tokenColumns = `id, session_id, user_id, digest, digest_alg, status, issued_at, expires_at,
	last_used_at, ip, user_agent, previous_token_id`

// FindActiveByUserID loads the user's active sessions with their chains.
func (r *PostgresRepository) FindActiveByUserID(ctx context.Context, userID string) ([]*Session, error) {
	const op = "session.find_active_by_user"
	q := db.Conn(ctx, r.pool)

	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s s
		WHERE s.user_id = $1 AND s.status = 'active'
		ORDER BY s.created_at, s.id
	`, sessionColumns, r.table("sessions")), userID)
	if err != nil {
		return nil, StoreError{Op: op, Err: err}
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SessionRecord, error) {
		return scanSessionRecord(row)
	})
	if err != nil {
		return nil, StoreError{Op: op, Err: err}
	}
	if len(recs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	chains, err := r.loadTokens(ctx, q, ids)
	if err != nil {
		return nil, StoreError{Op: op, Err: err}
	}

	out := make([]*Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, HydrateSession(rec, chains[rec.ID]))
	}
	return out, nil
}

// FindForRefresh resolves the session owning digest d through the unique
// digest index. Inside a transaction the session row is locked until commit,
// so concurrent refreshes of one session run one after another.
func (r *PostgresRepository) FindForRefresh(ctx context.Context, d token.Digest) (*Session, error) {
	const op = "session.find_for_refresh"
	if d.IsZero() {
		return nil, nil
	}

	q := db.Conn(ctx, r.pool)
	lock := ""
	if _, ok := db.TxFrom(ctx); ok {
		lock = "FOR UPDATE OF s"
	}

	row := q.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s s
		JOIN %s t ON t.session_id = s.id
		WHERE t.digest = $1 AND t.digest_alg = $2
		%s
	`, sessionColumns, r.table("sessions"), r.table("refresh_tokens"), lock), d.Value, d.Algorithm)

	rec, err := scanSessionRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, StoreError{Op: op, Err: err}
	}

	chains, err := r.loadTokens(ctx, q, []string{rec.ID})
	if err != nil {
		return nil, StoreError{Op: op, Err: err}
	}
	return HydrateSession(rec, chains[rec.ID]), nil
}

// Save writes s and its changed tokens. Retired tokens are updated before new
// ones are inserted so the one-active-token index sees a consistent chain.
func (r *PostgresRepository) Save(ctx context.Context, s *Session) error {
	const op = "session.save"
	if s == nil {
		return StoreError{Op: op, Err: ErrInvalidArgument}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wasNew := s.IsNew()
	undo := s.prepareSave()

	var version int64
	err := r.inTx(ctx, func(q db.Querier) error {
		var err error
		version, err = r.writeSession(ctx, q, s, wasNew)
		if err != nil {
			return err
		}
		return r.writeTokens(ctx, q, s)
	})
	if err != nil {
		undo()
		if isUniqueViolation(err) {
			err = ErrConflict
		}
		return StoreError{Op: op, Err: err}
	}

	s.commitSave(version)
	return nil
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(q db.Querier) error) (err error) {
	if tx, ok := db.TxFrom(ctx); ok {
		return fn(tx)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) writeSession(ctx context.Context, q db.Querier, s *Session, wasNew bool) (int64, error) {
	if wasNew {
		_, err := q.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (
				id, user_id, client_id, status, created_at, expires_at, last_used_at,
				ip, user_agent, ended_at, end_reason, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		`, r.table("sessions")),
			s.id, s.userID, s.clientID, string(s.status), s.createdAt, s.expiresAt, s.lastUsedAt,
			nullIfEmpty(s.ip), nullIfEmpty(s.userAgent), nullIfZero(s.endedAt), nullIfEmpty(s.endReason),
		)
		if err != nil {
			return 0, err
		}
		return 1, nil
	}

	tag, err := q.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = $3,
		    last_used_at = $4,
		    ended_at = $5,
		    end_reason = $6,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`, r.table("sessions")),
		s.id, s.version, string(s.status), s.lastUsedAt, nullIfZero(s.endedAt), nullIfEmpty(s.endReason),
	)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() != 1 {
		return 0, ErrConflict
	}
	return s.version + 1, nil
}

func (r *PostgresRepository) writeTokens(ctx context.Context, q db.Querier, s *Session) error {
	for _, t := range s.tokens {
		if t.IsNew() || !t.dirty {
			continue
		}
		_, err := q.Exec(ctx, fmt.Sprintf(`
			UPDATE %s
			SET status = $2, last_used_at = $3
			WHERE id = $1
		`, r.table("refresh_tokens")), t.id, string(t.status), t.lastUsedAt)
		if err != nil {
			return err
		}
	}

	for _, t := range s.tokens {
		if !t.IsNew() {
			continue
		}
		_, err := q.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (%s)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, r.table("refresh_tokens"), tokenColumns),
			t.id, t.sessionID, t.userID, t.digest.Value, t.digest.Algorithm, string(t.status),
			t.issuedAt, t.expiresAt, t.lastUsedAt,
			nullIfEmpty(t.ip), nullIfEmpty(t.userAgent), nullIfEmpty(t.previousTokenID),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) loadTokens(ctx context.Context, q db.Querier, sessionIDs []string) (map[string][]TokenRecord, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE session_id = ANY($1)
		ORDER BY session_id, issued_at, id
	`, tokenColumns, r.table("refresh_tokens")), sessionIDs)
	if err != nil {
		return nil, err
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TokenRecord, error) {
		return scanTokenRecord(row)
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string][]TokenRecord, len(sessionIDs))
	for _, rec := range recs {
		out[rec.SessionID] = append(out[rec.SessionID], rec)
	}
	return out, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.CollectableRow.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSessionRecord(row rowScanner) (SessionRecord, error) {
	var (
		rec       SessionRecord
		status    string
		ip        *string
		userAgent *string
		endedAt   *time.Time
		endReason *string
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.ClientID, &status, &rec.CreatedAt, &rec.ExpiresAt, &rec.LastUsedAt,
		&ip, &userAgent, &endedAt, &endReason, &rec.Version,
	)
	if err != nil {
		return SessionRecord{}, err
	}
	rec.Status = Status(status)
	rec.IP = deref(ip)
	rec.UserAgent = deref(userAgent)
	rec.EndReason = deref(endReason)
	if endedAt != nil {
		rec.EndedAt = endedAt.UTC()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.LastUsedAt = rec.LastUsedAt.UTC()
	return rec, nil
}

func scanTokenRecord(row rowScanner) (TokenRecord, error) {
	var (
		rec        TokenRecord
		status     string
		ip         *string
		userAgent  *string
		previousID *string
	)
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.UserID, &rec.Digest.Value, &rec.Digest.Algorithm, &status,
		&rec.IssuedAt, &rec.ExpiresAt, &rec.LastUsedAt, &ip, &userAgent, &previousID,
	)
	if err != nil {
		return TokenRecord{}, err
	}
	rec.Status = TokenStatus(status)
	rec.IP = deref(ip)
	rec.UserAgent = deref(userAgent)
	rec.PreviousTokenID = deref(previousID)
	rec.IssuedAt = rec.IssuedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.LastUsedAt = rec.LastUsedAt.UTC()
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
