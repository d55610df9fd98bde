package app

import (
	"context"
	"fmt"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

// backends are the persistence collaborators of the use cases.
type backends struct {
	users    identity.Store
	sessions session.Repository
	uow      db.UnitOfWork

	// pool is nil in in-memory mode. The app owns its lifecycle.
	pool *pgxpool.Pool
}

func (b backends) dbEnabled() bool { return b.pool != nil }

func (b backends) close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// newBackends decides between Postgres-backed persistence and in-memory dev stores.
func newBackends(ctx context.Context, cfg Config, log Logger) (backends, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return backends{
			users:    identity.NewMemoryStore(),
			sessions: session.NewMemoryRepository(),
			uow:      db.NoTx{},
		}, nil
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL, "up"); err != nil {
			return backends{}, fmt.Errorf("migrate: %w", err)
		}
		log.Info("db.migrate.done")
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return backends{}, err
	}

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return backends{}, err
	}
	sessions, err := session.NewPostgresRepository(pool)
	if err != nil {
		pool.Close()
		return backends{}, err
	}

	log.Info("db.enabled.postgres_store")
	return backends{
		users:    users,
		sessions: sessions,
		uow:      db.NewTxManager(pool),
		pool:     pool,
	}, nil
}
