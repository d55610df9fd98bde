package password

import "testing"

// fastConfig keeps argon2 cheap in unit tests.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "this is a strong password 123!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "wrong password")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := fastConfig()

	for _, in := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
	} {
		ok, err := cfg.Verify(in, "whatever")
		if err != ErrInvalidHash {
			t.Fatalf("Verify(%q): expected ErrInvalidHash, got %v", in, err)
		}
		if ok {
			t.Fatalf("Verify(%q): expected false", in)
		}
	}
}

func TestVerify_RejectsOversizedParams(t *testing.T) {
	big := fastConfig()
	big.Params.Iterations = 5

	h, err := big.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	small := fastConfig()
	if _, err := small.Verify(h, "this is a strong password 123!"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash for oversized params, got %v", err)
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := fastConfig()
	cfg.MinLength = 12
	cfg.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("SESSIOND_PASSWORD_MIN_LEN", "10")
	t.Setenv("SESSIOND_PASSWORD_MAX_LEN", "200")
	t.Setenv("SESSIOND_ARGON2_ITERATIONS", "2")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.MinLength != 10 || cfg.MaxLength != 200 {
		t.Fatalf("policy mismatch: %+v", cfg)
	}
	if cfg.Params.Iterations != 2 {
		t.Fatalf("iterations=%d", cfg.Params.Iterations)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("SESSIOND_PASSWORD_MIN_LEN", "300")
	t.Setenv("SESSIOND_PASSWORD_MAX_LEN", "200")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for min > max")
	}

	t.Setenv("SESSIOND_PASSWORD_MIN_LEN", "abc")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for non-numeric min")
	}
}
