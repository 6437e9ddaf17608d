// Package app wires the Agrimitra server runtime: config, logging, stores,
// HTTP routes, the auth gate, and the chat gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"agrimitra/cmd/identity"
	"agrimitra/cmd/internal/advisory"
	authapi "agrimitra/cmd/internal/auth/api"
	"agrimitra/cmd/internal/auth/gate"
	"agrimitra/cmd/internal/auth/token"
	"agrimitra/cmd/internal/chat"
	"agrimitra/cmd/internal/forum"
	"agrimitra/cmd/internal/translate"
)

// App is the Agrimitra server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	auth      *authapi.Handler
	forum     *forum.Handler
	advisory  *advisory.Handler
	translate *translate.Handler
	chat      *chat.Gateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	tokenCfg, err := token.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewHMACManager(tokenCfg)
	if err != nil {
		return nil, err
	}
	g, err := gate.New(log, tokens)
	if err != nil {
		return nil, err
	}

	accounts, forumStore, dbPool, dbEnabled, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	closeOnErr := func() {
		if dbPool != nil {
			dbPool.Close()
		}
	}

	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), accounts, tokens, g)
	if err != nil {
		closeOnErr()
		return nil, err
	}

	// Translation is optional: without an endpoint, forum responses stay in
	// their original language and /api/translate is not registered.
	var translator forum.Translator
	var translateH *translate.Handler
	translateCfg := translate.LoadConfigFromEnv()
	if translateCfg.Endpoint != "" {
		client, err := translate.NewClient(log, translateCfg)
		if err != nil {
			closeOnErr()
			return nil, err
		}
		translator = client
		translateH, err = translate.NewHandler(log, client, g)
		if err != nil {
			closeOnErr()
			return nil, err
		}
	} else {
		log.Info("translate.disabled")
	}

	forumH, err := forum.NewHandler(log, forum.LoadConfigFromEnv(), forumStore, accounts, g, translator)
	if err != nil {
		closeOnErr()
		return nil, err
	}

	advisoryCfg := advisory.LoadConfigFromEnv()
	var weather *advisory.WeatherClient
	if advisoryCfg.WeatherURL != "" {
		weather, err = advisory.NewWeatherClient(advisoryCfg)
		if err != nil {
			closeOnErr()
			return nil, err
		}
	} else {
		log.Info("advisory.weather.disabled")
	}
	var mandi *advisory.MandiClient
	if advisoryCfg.MandiURL != "" {
		mandi, err = advisory.NewMandiClient(advisoryCfg)
		if err != nil {
			closeOnErr()
			return nil, err
		}
	} else {
		log.Info("advisory.mandi.disabled")
	}
	advisoryH, err := advisory.NewHandler(log, weather, mandi, g)
	if err != nil {
		closeOnErr()
		return nil, err
	}

	chatGW, err := chat.NewGateway(log, g, chat.NewAdvisor())
	if err != nil {
		closeOnErr()
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		auth:      auth,
		forum:     forumH,
		advisory:  advisoryH,
		translate: translateH,
		chat:      chatGW,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.forum, a.advisory, a.translate, a.chat)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

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

	if a.dbPool != nil {
		a.dbPool.Close()
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

// newStores decides between Postgres-backed persistence and the in-memory
// dev stores. The app owns the pool lifecycle.
func newStores(ctx context.Context, cfg Config, log Logger) (identity.Store, forum.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return identity.NewMemoryStore(), forum.NewMemoryStore(), nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, false, err
	}

	accounts, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}
	forumStore, err := forum.NewPostgresStore(pool, forum.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return accounts, forumStore, pool, true, nil
}
