package identity

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.CreateUser(ctx, CreateUserInput{
		Email:        " User@Example.com ",
		PasswordHash: "$argon2id$stub",
		Now:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if len(u.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", u.ID)
	}
	if u.EmailNorm != "user@example.com" {
		t.Fatalf("EmailNorm=%q", u.EmailNorm)
	}

	ua, err := s.GetUserAuthByEmail(ctx, "USER@example.COM")
	if err != nil {
		t.Fatalf("GetUserAuthByEmail: %v", err)
	}
	if ua.ID != u.ID || ua.PasswordHash != "$argon2id$stub" {
		t.Fatalf("lookup mismatch: %+v", ua)
	}
}

func TestMemoryStore_ConflictEmail_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "a@example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := s.CreateUser(ctx, CreateUserInput{Email: "A@Example.com", PasswordHash: "h"})
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	_, err := NewMemoryStore().GetUserAuthByEmail(context.Background(), "nobody@example.com")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, in := range []CreateUserInput{
		{Email: "", PasswordHash: "h"},
		{Email: "not-an-email", PasswordHash: "h"},
		{Email: "Name <a@example.com>", PasswordHash: "h"},
		{Email: "a@example.com", PasswordHash: ""},
	} {
		if _, err := s.CreateUser(ctx, in); !IsInvalidInput(err) {
			t.Fatalf("CreateUser(%+v): expected invalid input, got %v", in, err)
		}
	}
}
