package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func setSecurityEnv(t *testing.T) {
	t.Helper()

	t.Setenv("SESSIOND_TOKEN_DIGEST_KEY", strings.Repeat("d", 32))
	t.Setenv("SESSIOND_JWT_SIGNING_KEY", strings.Repeat("j", 32))
	t.Setenv("SESSIOND_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("SESSIOND_ARGON2_ITERATIONS", "1")
	t.Setenv("SESSIOND_ARGON2_PARALLELISM", "1")
	t.Setenv("SESSIOND_DATABASE_URL", "")
}

func newTestApp(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.ContentLength != 0 {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestNew_FailsWithoutDigestKey(t *testing.T) {
	setSecurityEnv(t)
	t.Setenv("SESSIOND_TOKEN_DIGEST_KEY", "")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(context.Background(), Config{}, log); err == nil {
		t.Fatalf("expected error when the digest key is missing")
	}
}

func TestApp_HealthReadyMetrics(t *testing.T) {
	setSecurityEnv(t)
	srv := newTestApp(t, Config{MetricsEnabled: true})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status=%d want 200", path, resp.StatusCode)
		}
		if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
			t.Fatalf("GET %s missing security headers", path)
		}
	}
}

func TestApp_ReadinessRequiresDB(t *testing.T) {
	setSecurityEnv(t)
	srv := newTestApp(t, Config{ReadinessRequireDB: true})

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", resp.StatusCode)
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	setSecurityEnv(t)
	srv := newTestApp(t, Config{MetricsEnabled: false})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}
}

func TestApp_RegisterLoginRefreshLogout(t *testing.T) {
	setSecurityEnv(t)
	srv := newTestApp(t, Config{MetricsEnabled: true})

	creds := map[string]string{"email": "ada@example.com", "password": "correct horse battery"}
	resp, _ := postJSON(t, srv.URL+"/auth/register", creds, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status=%d want 201", resp.StatusCode)
	}

	resp, login := postJSON(t, srv.URL+"/auth/login", map[string]string{
		"email":     creds["email"],
		"password":  creds["password"],
		"client_id": "laptop",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d want 200", resp.StatusCode)
	}
	sess, _ := login["session"].(map[string]any)
	refresh, _ := sess["refresh_token"].(string)
	if refresh == "" {
		t.Fatalf("login response missing refresh token: %v", login)
	}

	resp, rotated := postJSON(t, srv.URL+"/auth/refresh", map[string]string{
		"client_id":     "laptop",
		"refresh_token": refresh,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status=%d want 200", resp.StatusCode)
	}
	sess, _ = rotated["session"].(map[string]any)
	access, _ := sess["access_token"].(string)
	next, _ := sess["refresh_token"].(string)
	if access == "" || next == "" || next == refresh {
		t.Fatalf("unexpected refresh response: %v", rotated)
	}

	resp, _ = postJSON(t, srv.URL+"/auth/logout", map[string]string{
		"client_id":     "laptop",
		"refresh_token": next,
	}, map[string]string{"Authorization": "Bearer " + access})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status=%d want 204", resp.StatusCode)
	}

	resp, body := postJSON(t, srv.URL+"/auth/refresh", map[string]string{
		"client_id":     "laptop",
		"refresh_token": next,
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status=%d want 401 (%v)", resp.StatusCode, body)
	}
}
