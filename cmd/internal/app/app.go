// Package app wires the VentasBros server runtime: config, logging, storage,
// HTTP routes, metrics, and the expired-token sweeper.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ventasbros/cmd/identity"
	authapi "ventasbros/cmd/internal/auth/api"
	"ventasbros/cmd/internal/auth/session"
	"ventasbros/cmd/internal/catalog"
	catalogapi "ventasbros/cmd/internal/catalog/api"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type poolStore struct {
	pool *pgxpool.Pool
}

func (s poolStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

// App is the VentasBros server runtime.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics  *Metrics
	sessions *session.Service
	sweeper  *session.Sweeper
	refresh  *authapi.TokenRefresh
	auth     *authapi.Handler
	usersAPI *authapi.Users
	catalog  *catalogapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	ctx := context.Background()
	metrics := NewMetrics()

	st, dbPool, dbEnabled, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var (
		users         identity.Store
		tokens        session.Store
		productStore  catalog.ProductStore
		categoryStore catalog.CategoryStore
	)
	if dbEnabled {
		users, err = identity.NewPostgresStore(dbPool)
		if err != nil {
			dbPool.Close()
			return nil, err
		}
		tokens = session.NewPostgresStore(dbPool)
		productStore = catalog.NewPostgresProductStore(dbPool)
		categoryStore = catalog.NewPostgresCategoryStore(dbPool)
	} else {
		users = identity.NewMemoryStore()
		tokens = session.NewMemoryStore()
		mem := catalog.NewMemoryStore()
		productStore, categoryStore = mem, mem
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	codec, err := session.NewHS256Codec(sessCfg)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	sessions := session.NewService(sessCfg, tokens, codec, authapi.NewPrincipalSource(users))
	sessions.OnIssued = metrics.TokensIssued.Inc
	sessions.OnRotationConflict = metrics.RotationConflicts.Inc

	authCfg := authapi.LoadConfigFromEnv()
	auth, err := authapi.NewHandler(log, authCfg, users, sessions)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	usersAPI, err := authapi.NewUsers(log, authCfg, users, sessions)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	products := catalog.NewProductService(productStore, categoryStore)
	categories := catalog.NewCategoryService(categoryStore, productStore)
	catalogHandler, err := catalogapi.NewHandler(log, authCfg.MaxBodyBytes, products, categories, sessions)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	refresh := authapi.NewTokenRefresh(log, sessions)
	refresh.OnRotated = metrics.TokenRotations.Inc

	sweeper := session.NewSweeper(sessions, sessCfg.CleanupInterval, log)
	sweeper.OnSwept = func(n int64) { metrics.TokensSwept.Add(float64(n)) }

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		metrics:   metrics,
		sessions:  sessions,
		sweeper:   sweeper,
		refresh:   refresh,
		auth:      auth,
		usersAPI:  usersAPI,
		catalog:   catalogHandler,
	}, nil
}

// Handler builds the complete HTTP handler chain: routes, silent-renewal
// interceptor, then request logging on the outside.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.metrics, a.auth, a.usersAPI, a.catalog)
	return WithRequestLogging(a.refresh.Wrap(mux), a.log, a.metrics)
}

// Run starts the HTTP server and the token sweeper and blocks until context
// cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweeper.Run(sweepCtx)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
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

// newStore decides between Postgres-backed persistence and the in-memory dev
// store, applying migrations when the database is configured.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, nil
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, cfg.DatabaseURL, log); err != nil {
			return nil, nil, false, err
		}
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return poolStore{pool: pool}, pool, true, nil
}
