package session

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"sessiond/cmd/internal/db"
	"sessiond/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are enabled when SESSIOND_DATABASE_URL is set.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresRepository_SaveAndFindForRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustPGXPool(ctx, t)
	defer pool.Close()

	repo := mustRepository(t, pool)
	d := testDigester(t)

	userID := mustCreateUser(ctx, t, pool)
	t.Cleanup(func() { cleanupUserData(t, pool, userID) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := mustStartFor(t, d, userID, "pg-secret-1", now)

	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save(new): %v", err)
	}
	if s.Version() != 1 || s.IsNew() {
		t.Fatalf("after insert: version=%d new=%v", s.Version(), s.IsNew())
	}

	got, err := repo.FindForRefresh(ctx, d.Digest([]byte("pg-secret-1")))
	if err != nil {
		t.Fatalf("FindForRefresh: %v", err)
	}
	if got == nil || got.ID() != s.ID() {
		t.Fatalf("FindForRefresh: expected session %q, got %+v", s.ID(), got)
	}
	if got.ClientID() != "pg-client" || got.IP() != "192.0.2.10" {
		t.Fatalf("FindForRefresh: fingerprint not persisted: client=%q ip=%q", got.ClientID(), got.IP())
	}
	if !got.ExpiresAt().Equal(s.ExpiresAt()) {
		t.Fatalf("ExpiresAt=%v want %v", got.ExpiresAt(), s.ExpiresAt())
	}
	if !got.HasActiveRefreshToken([]byte("pg-secret-1"), d) {
		t.Fatalf("loaded session must verify the presented secret")
	}

	missing, err := repo.FindForRefresh(ctx, d.Digest([]byte("pg-unknown")))
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown digest, got %v, %v", missing, err)
	}
}

func TestPostgresRepository_RotatePersistsChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustPGXPool(ctx, t)
	defer pool.Close()

	repo := mustRepository(t, pool)
	d := testDigester(t)

	userID := mustCreateUser(ctx, t, pool)
	t.Cleanup(func() { cleanupUserData(t, pool, userID) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := mustStartFor(t, d, userID, "rot-1", now)
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save(new): %v", err)
	}

	loaded, err := repo.FindForRefresh(ctx, d.Digest([]byte("rot-1")))
	if err != nil || loaded == nil {
		t.Fatalf("FindForRefresh: %v", err)
	}
	if err := loaded.RotateToken([]byte("rot-1"), d.Digest([]byte("rot-2")), d, now.Add(time.Minute)); err != nil {
		t.Fatalf("RotateToken: %v", err)
	}
	if err := repo.Save(ctx, loaded); err != nil {
		t.Fatalf("Save(rotated): %v", err)
	}
	if loaded.Version() != 2 {
		t.Fatalf("version=%d want 2", loaded.Version())
	}

	// The retired digest still resolves to the session so reuse can be detected.
	byOld, err := repo.FindForRefresh(ctx, d.Digest([]byte("rot-1")))
	if err != nil || byOld == nil {
		t.Fatalf("FindForRefresh(old): got=%v err=%v", byOld, err)
	}
	toks := byOld.Tokens()
	if len(toks) != 2 {
		t.Fatalf("tokens=%d want 2", len(toks))
	}
	if toks[0].Status() != TokenRotated || toks[1].Status() != TokenActive {
		t.Fatalf("chain statuses: %s, %s", toks[0].Status(), toks[1].Status())
	}
	if toks[1].PreviousTokenID() != toks[0].ID() {
		t.Fatalf("previous_token_id=%q want %q", toks[1].PreviousTokenID(), toks[0].ID())
	}

	if err := byOld.RotateToken([]byte("rot-1"), d.Digest([]byte("rot-3")), d, now.Add(2*time.Minute)); !errors.Is(err, ErrRefreshTokenReuseDetected) {
		t.Fatalf("expected reuse detection, got %v", err)
	}
	if err := repo.Save(ctx, byOld); err != nil {
		t.Fatalf("Save(reuse): %v", err)
	}

	active, err := repo.FindActiveByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("FindActiveByUserID: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active sessions after reuse, got %d", len(active))
	}
}

func TestPostgresRepository_StaleVersionConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustPGXPool(ctx, t)
	defer pool.Close()

	repo := mustRepository(t, pool)
	d := testDigester(t)

	userID := mustCreateUser(ctx, t, pool)
	t.Cleanup(func() { cleanupUserData(t, pool, userID) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := mustStartFor(t, d, userID, "cf-1", now)
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save(new): %v", err)
	}

	a, _ := repo.FindForRefresh(ctx, d.Digest([]byte("cf-1")))
	b, _ := repo.FindForRefresh(ctx, d.Digest([]byte("cf-1")))
	if a == nil || b == nil {
		t.Fatalf("expected both loads to succeed")
	}

	if err := a.RotateToken([]byte("cf-1"), d.Digest([]byte("cf-a")), d, now.Add(time.Second)); err != nil {
		t.Fatalf("RotateToken a: %v", err)
	}
	if err := b.RotateToken([]byte("cf-1"), d.Digest([]byte("cf-b")), d, now.Add(time.Second)); err != nil {
		t.Fatalf("RotateToken b: %v", err)
	}

	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := repo.Save(ctx, b); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for stale writer, got %v", err)
	}

	if got, _ := repo.FindForRefresh(ctx, d.Digest([]byte("cf-b"))); got != nil {
		t.Fatalf("losing writer's token must not be stored")
	}
}

func TestPostgresRepository_JoinsUnitOfWork(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := mustPGXPool(ctx, t)
	defer pool.Close()

	repo := mustRepository(t, pool)
	uow := db.NewTxManager(pool)
	d := testDigester(t)

	userID := mustCreateUser(ctx, t, pool)
	t.Cleanup(func() { cleanupUserData(t, pool, userID) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	boom := errors.New("boom")

	err := uow.RunInTx(ctx, func(ctx context.Context) error {
		if err := repo.Save(ctx, mustStartFor(t, d, userID, "uow-1", now)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx: expected boom, got %v", err)
	}
	if got, _ := repo.FindForRefresh(ctx, d.Digest([]byte("uow-1"))); got != nil {
		t.Fatalf("rolled back save must not be visible")
	}

	err = uow.RunInTx(ctx, func(ctx context.Context) error {
		return repo.Save(ctx, mustStartFor(t, d, userID, "uow-2", now))
	})
	if err != nil {
		t.Fatalf("RunInTx commit: %v", err)
	}
	if got, _ := repo.FindForRefresh(ctx, d.Digest([]byte("uow-2"))); got == nil {
		t.Fatalf("committed save must be visible")
	}
}

func TestWithSchema_RejectsBadIdentifier(t *testing.T) {
	if _, err := NewPostgresRepository(nil, WithSchema("bad;schema")); err == nil {
		t.Fatalf("expected error for invalid schema identifier")
	}
}

func mustStartFor(t *testing.T, d *token.Digester, userID, secret string, now time.Time) *Session {
	t.Helper()
	s, err := Start(StartParams{
		UserID:    userID,
		ClientID:  "pg-client",
		Now:       now,
		TTL:       time.Hour,
		Digest:    d.Digest([]byte(secret)),
		IP:        "192.0.2.10",
		UserAgent: "sessiond-test/1.0",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func mustPGXPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("SESSIOND_DATABASE_URL"))
	if raw == "" {
		t.Skip("SESSIOND_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: raw, MaxConns: 4})
	if err != nil {
		if shouldSkipIntegration(err) {
			t.Skipf("Postgres unreachable (SESSIOND_DATABASE_URL set): %v", err)
		}
		t.Fatalf("connect postgres: %v", err)
	}
	if err := db.Migrate(raw, "up"); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func mustRepository(t *testing.T, pool *pgxpool.Pool) *PostgresRepository {
	t.Helper()
	repo, err := NewPostgresRepository(pool)
	if err != nil {
		t.Fatalf("NewPostgresRepository: %v", err)
	}
	return repo
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}

func mustCreateUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	id := ulid.Make().String()
	email := "sess-" + strings.ToLower(id) + "@example.com"
	_, err := pool.Exec(ctx, `
INSERT INTO sessiond.users (id, email, email_norm, password_hash, created_at)
VALUES ($1, $2, $2, '$argon2id$stub', now())
`, id, email)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func cleanupUserData(t *testing.T, pool *pgxpool.Pool, userID string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// sessions and refresh_tokens cascade from users.
	if _, err := pool.Exec(ctx, `DELETE FROM sessiond.users WHERE id = $1`, userID); err != nil {
		t.Fatalf("cleanup user: %v", err)
	}
}
