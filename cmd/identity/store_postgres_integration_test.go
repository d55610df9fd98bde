package identity

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"sessiond/cmd/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require SESSIOND_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_CreateUser_ThenLookup(t *testing.T) {
	pool := mustOpenTestPool(t)
	defer pool.Close()

	s, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	email := "It-" + mustNewULIDLike(t) + "@Example.com"
	u, err := s.CreateUser(ctx, CreateUserInput{Email: email, PasswordHash: "$argon2id$stub", Now: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	t.Cleanup(func() { mustExec(t, pool, `DELETE FROM sessiond.users WHERE id = $1`, u.ID) })

	ua, err := s.GetUserAuthByEmail(ctx, strings.ToUpper(email))
	if err != nil {
		t.Fatalf("GetUserAuthByEmail: %v", err)
	}
	if ua.ID != u.ID || ua.PasswordHash != "$argon2id$stub" {
		t.Fatalf("lookup mismatch: %+v", ua)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{Email: strings.ToLower(email), PasswordHash: "h"})
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_GetUserAuthByEmail_NotFound(t *testing.T) {
	pool := mustOpenTestPool(t)
	defer pool.Close()

	s, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	_, err = s.GetUserAuthByEmail(context.Background(), "missing-"+mustNewULIDLike(t)+"@example.com")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWithSchema_RejectsBadIdentifier(t *testing.T) {
	if _, err := NewPostgresStore(nil, WithSchema("bad;schema")); err == nil {
		t.Fatalf("expected error for invalid schema identifier")
	}
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("SESSIOND_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: SESSIOND_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: raw, MaxConns: 4})
	if err != nil {
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (SESSIOND_DATABASE_URL set): %v", err)
		}
		t.Fatalf("connect postgres: %v", err)
	}
	if err := db.Migrate(raw, "up"); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}
	return pool
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
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}

func mustExec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, sql, args...); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
}

func mustNewULIDLike(t *testing.T) string {
	t.Helper()

	id, err := NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	return id
}
