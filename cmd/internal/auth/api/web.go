package authapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"sessiond/cmd/security/token"
)

// setSessionCookies stores the refresh secret in an HttpOnly cookie and
// issues a fresh CSRF token readable by scripts. It returns the CSRF token.
func (h *Handler) setSessionCookies(w http.ResponseWriter, secret string, exp time.Time) (string, error) {
	csrf, err := token.NewSecret(32)
	if err != nil {
		return "", err
	}

	h.setCookie(w, h.cfg.RefreshCookieName, secret, exp, true)
	h.setCookie(w, h.cfg.CSRFCookieName, csrf, exp, false)
	return csrf, nil
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	if !h.cfg.RefreshCookieEnabled {
		return
	}
	h.expireCookie(w, h.cfg.RefreshCookieName, true)
	h.expireCookie(w, h.cfg.CSRFCookieName, false)
}

// refreshSecretFromCookie returns the cookie secret when cookie transport is on.
func (h *Handler) refreshSecretFromCookie(r *http.Request) (string, bool) {
	if !h.cfg.RefreshCookieEnabled {
		return "", false
	}
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// csrfDoubleSubmitValid reports whether the CSRF header echoes the CSRF cookie.
func (h *Handler) csrfDoubleSubmitValid(r *http.Request) bool {
	if !h.cfg.RefreshCookieEnabled {
		return false
	}
	c, err := r.Cookie(h.cfg.CSRFCookieName)
	if err != nil {
		return false
	}
	cv := strings.TrimSpace(c.Value)
	hv := strings.TrimSpace(r.Header.Get(h.cfg.CSRFHeaderName))
	if cv == "" || hv == "" || len(cv) != len(hv) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cv), []byte(hv)) == 1
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string, httpOnly bool) {
	if strings.TrimSpace(name) == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}
