package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/accesstoken"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/auth/usecase"
	"sessiond/cmd/internal/clock"
	"sessiond/cmd/security/password"
)

// Auth is the use-case surface served over HTTP. *usecase.Service satisfies it.
type Auth interface {
	Register(ctx context.Context, email, password string) (identity.User, error)
	Login(ctx context.Context, in usecase.LoginInput) (usecase.Result, error)
	Refresh(ctx context.Context, fp usecase.Fingerprint, presentedSecret string) (usecase.Result, error)
	LogoutSession(ctx context.Context, userID string, fp usecase.Fingerprint, presentedSecret string) error
	LogoutAllSessions(ctx context.Context, userID string) error
}

// TokenVerifier verifies bearer access tokens. accesstoken.Manager satisfies it.
type TokenVerifier interface {
	Verify(token string, now time.Time) (accesstoken.Claims, error)
}

// Handler wires HTTP auth endpoints to the session use cases.
type Handler struct {
	log *slog.Logger
	cfg Config

	auth   Auth
	tokens TokenVerifier
	clock  clock.Clock
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the clock used to check access-token expiry.
func WithClock(c clock.Clock) HandlerOption {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, auth Auth, tokens TokenVerifier, opts ...HandlerOption) (*Handler, error) {
	if auth == nil || tokens == nil {
		return nil, errors.New("authapi: nil auth service or token verifier")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:    log,
		cfg:    cfg,
		auth:   auth,
		tokens: tokens,
		clock:  clock.System{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/logout_all", h.handleLogoutAll)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	u, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "email already registered")
		case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid email")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{User: userResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	fp, ok := h.fingerprint(r, req.ClientID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "client_id is required")
		return
	}

	presented := strings.TrimSpace(req.RefreshToken)
	if presented == "" {
		// A stale cookie only ever selects the idempotent path, so it needs no CSRF check.
		presented, _ = h.refreshSecretFromCookie(r)
	}

	res, err := h.auth.Login(r.Context(), usecase.LoginInput{
		Email:           req.Email,
		Password:        req.Password,
		Fingerprint:     fp,
		PresentedSecret: presented,
	})
	if err != nil {
		h.writeAuthError(w, "auth.login.fail", err)
		return
	}

	resp, ok := h.sessionResponse(w, res)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{UserID: res.UserID, Session: resp})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	secret := strings.TrimSpace(req.RefreshToken)
	if secret == "" {
		cookieSecret, ok := h.refreshSecretFromCookie(r)
		if ok && !h.csrfDoubleSubmitValid(r) {
			writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
			return
		}
		secret = cookieSecret
	}
	if secret == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	fp, ok := h.fingerprint(r, req.ClientID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "client_id is required")
		return
	}

	res, err := h.auth.Refresh(r.Context(), fp, secret)
	if err != nil {
		if session.IsUnauthorized(err) {
			h.clearSessionCookies(w)
		}
		h.writeAuthError(w, "auth.refresh.fail", err)
		return
	}

	resp, ok := h.sessionResponse(w, res)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Session: resp})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req logoutRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	secret := strings.TrimSpace(req.RefreshToken)
	if secret == "" {
		secret, _ = h.refreshSecretFromCookie(r)
	}
	fp, _ := h.fingerprint(r, req.ClientID)

	if err := h.auth.LogoutSession(r.Context(), claims.Subject, fp, secret); err != nil {
		h.writeAuthError(w, "auth.logout.fail", err)
		return
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	if err := h.auth.LogoutAllSessions(r.Context(), claims.Subject); err != nil {
		h.writeAuthError(w, "auth.logout_all.fail", err)
		return
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

// sessionResponse builds the token payload, moving the refresh secret into
// cookies when cookie transport is enabled. It writes the error response and
// returns false on failure.
func (h *Handler) sessionResponse(w http.ResponseWriter, res usecase.Result) (sessionResponse, bool) {
	resp := sessionResponse{
		SessionID:        res.SessionID,
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     res.RefreshSecret,
		RefreshExpiresAt: res.ExpiresAt,
	}
	if !h.cfg.RefreshCookieEnabled {
		return resp, true
	}

	csrf, err := h.setSessionCookies(w, res.RefreshSecret, res.ExpiresAt)
	if err != nil {
		h.log.Error("auth.cookie.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return sessionResponse{}, false
	}
	resp.RefreshToken = ""
	resp.CSRFToken = csrf
	return resp, true
}

// writeAuthError maps use-case errors onto HTTP responses. Session-state
// failures share 401 but keep distinct codes so clients know to re-authenticate.
func (h *Handler) writeAuthError(w http.ResponseWriter, event string, err error) {
	var invalid session.InvalidSessionError
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.As(err, &invalid):
		writeError(w, http.StatusUnauthorized, "invalid_session", "invalid session")
	case errors.Is(err, session.ErrRefreshTokenReuseDetected):
		writeError(w, http.StatusUnauthorized, "refresh_reuse_detected", "refresh token reuse detected")
	case errors.Is(err, session.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session_expired", "session expired")
	case errors.Is(err, session.ErrSessionNotActive), errors.Is(err, session.ErrNoActiveRefreshToken):
		writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
	case errors.Is(err, session.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "concurrent update, retry")
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (accesstoken.Claims, bool) {
	tok := bearerToken(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return accesstoken.Claims{}, false
	}
	claims, err := h.tokens.Verify(tok, h.clock.Now())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return accesstoken.Claims{}, false
	}
	return claims, true
}

// fingerprint builds the caller fingerprint. It reports false when no client
// id was supplied in the body or the client-id header.
func (h *Handler) fingerprint(r *http.Request, bodyClientID string) (usecase.Fingerprint, bool) {
	clientID := strings.TrimSpace(bodyClientID)
	if clientID == "" && h.cfg.ClientIDHeader != "" {
		clientID = strings.TrimSpace(r.Header.Get(h.cfg.ClientIDHeader))
	}

	fp := usecase.Fingerprint{
		ClientID:  clientID,
		UserAgent: strings.TrimSpace(r.UserAgent()),
	}
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		fp.IP = ip.String()
	}
	return fp, clientID != ""
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
