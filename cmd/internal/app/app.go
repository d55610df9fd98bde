// Package app wires the sessiond runtime: config, logging, persistence, the
// session use cases and the HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	authapi "sessiond/cmd/internal/auth/api"
	"sessiond/cmd/internal/auth/usecase"
	"sessiond/cmd/internal/metrics"
)

// App is the sessiond server runtime.
type App struct {
	cfg Config
	log Logger

	stores  backends
	metrics *metrics.Metrics
	auth    *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sec, err := loadSecurity()
	if err != nil {
		return nil, err
	}
	ucCfg, err := usecase.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	stores, err := newBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	deps := usecase.Deps{
		Users:     stores.users,
		Passwords: sec.passwords,
		Sessions:  stores.sessions,
		UoW:       stores.uow,
		Digester:  sec.digester,
		Tokens:    sec.tokens,
		Logger:    log,
	}
	if m != nil {
		deps.Metrics = m
	}
	svc, err := usecase.New(ucCfg, deps)
	if err != nil {
		stores.close()
		return nil, err
	}

	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), svc, sec.tokens)
	if err != nil {
		stores.close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		log:     log,
		stores:  stores,
		metrics: m,
		auth:    auth,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.stores, a.metrics, a.auth)
	return WithSecurityHeaders(WithRequestLogging(mux, a.log))
}

// Close releases store resources.
func (a *App) Close() {
	a.stores.close()
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.stores.dbEnabled())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
