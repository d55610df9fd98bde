package authapi

import (
	"net/http"
	"testing"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()

	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes=%d", cfg.MaxBodyBytes)
	}
	if cfg.RefreshCookieEnabled {
		t.Fatalf("cookie transport must be opt-in")
	}
	if cfg.ClientIDHeader != "X-Client-ID" {
		t.Fatalf("ClientIDHeader=%q", cfg.ClientIDHeader)
	}
}

func TestLoadConfigFromEnv_CookieGuardrails(t *testing.T) {
	t.Setenv("SESSIOND_AUTH_REFRESH_COOKIE_NAME", "sd_token")
	t.Setenv("SESSIOND_AUTH_CSRF_COOKIE_NAME", "sd_token")
	t.Setenv("SESSIOND_AUTH_COOKIE_SAMESITE", "none")
	t.Setenv("SESSIOND_AUTH_COOKIE_SECURE", "false")

	cfg := LoadConfigFromEnv()

	if cfg.CSRFCookieName == cfg.RefreshCookieName {
		t.Fatalf("csrf cookie name must differ from refresh cookie name")
	}
	if cfg.CookieSameSite != http.SameSiteNoneMode {
		t.Fatalf("expected SameSite=None, got %v", cfg.CookieSameSite)
	}
	if !cfg.CookieSecure {
		t.Fatalf("SameSite=None requires Secure=true")
	}
}

func TestLoadConfigFromEnv_IgnoresBadNumbers(t *testing.T) {
	t.Setenv("SESSIOND_AUTH_MAX_BODY_BYTES", "-5")
	t.Setenv("SESSIOND_AUTH_TRUST_PROXY", "maybe")

	cfg := LoadConfigFromEnv()
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes=%d, want default", cfg.MaxBodyBytes)
	}
	if cfg.TrustProxy {
		t.Fatalf("unparseable bool must fall back to false")
	}
}

func TestParseSameSite(t *testing.T) {
	tests := []struct {
		in   string
		want http.SameSite
	}{
		{in: "strict", want: http.SameSiteStrictMode},
		{in: "lax", want: http.SameSiteLaxMode},
		{in: "none", want: http.SameSiteNoneMode},
		{in: "default", want: http.SameSiteDefaultMode},
		{in: "unknown", want: http.SameSiteLaxMode},
	}

	for _, tc := range tests {
		got := parseSameSite(tc.in)
		if got != tc.want {
			t.Fatalf("parseSameSite(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
