package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls the HTTP transport of the auth endpoints.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// ClientIDHeader names the request header carrying the client identifier
	// when the body does not.
	ClientIDHeader string

	// Refresh cookie transport. When enabled, login and refresh set the
	// refresh secret in an HttpOnly cookie and omit it from the body; a cookie
	// secret is only accepted together with a matching CSRF header.
	RefreshCookieEnabled bool
	RefreshCookieName    string
	CSRFCookieName       string
	CSRFHeaderName       string
	CookiePath           string
	CookieDomain         string
	CookieSecure         bool
	CookieSameSite       http.SameSite
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      1 << 20, // 1 MiB
		ClientIDHeader:    "X-Client-ID",
		RefreshCookieName: "sessiond_refresh",
		CSRFCookieName:    "sessiond_csrf",
		CSRFHeaderName:    "X-CSRF-Token",
		CookiePath:        "/auth",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads transport config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:           envBool("SESSIOND_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:         envInt64("SESSIOND_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		ClientIDHeader:       envString("SESSIOND_AUTH_CLIENT_ID_HEADER", def.ClientIDHeader),
		RefreshCookieEnabled: envBool("SESSIOND_AUTH_REFRESH_COOKIE", false),
		RefreshCookieName:    envString("SESSIOND_AUTH_REFRESH_COOKIE_NAME", def.RefreshCookieName),
		CSRFCookieName:       envString("SESSIOND_AUTH_CSRF_COOKIE_NAME", def.CSRFCookieName),
		CSRFHeaderName:       envString("SESSIOND_AUTH_CSRF_HEADER_NAME", def.CSRFHeaderName),
		CookiePath:           envString("SESSIOND_AUTH_COOKIE_PATH", def.CookiePath),
		CookieDomain:         envString("SESSIOND_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:         envBool("SESSIOND_AUTH_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite:       parseSameSite(envString("SESSIOND_AUTH_COOKIE_SAMESITE", "lax")),
	}

	// Both cookies share a path; identical names would overwrite each other.
	if cfg.CSRFCookieName == cfg.RefreshCookieName {
		cfg.CSRFCookieName = cfg.RefreshCookieName + "_csrf"
	}
	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
