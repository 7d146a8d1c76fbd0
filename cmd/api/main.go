package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rolodex.dev/internal/auth"
	"rolodex.dev/internal/config"
	"rolodex.dev/internal/contacts"
	"rolodex.dev/internal/httpapi"
	"rolodex.dev/internal/migrate"
	"rolodex.dev/internal/obs"
	"rolodex.dev/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("config_invalid")
	}
	if err := obs.SetLevel(cfg.Log.Level); err != nil {
		obs.Logger().Warn().Err(err).Str("level", cfg.Log.Level).Msg("log_level_ignored")
	}
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	var (
		users     auth.UserStore
		contactDB contacts.Store
		readiness httpapi.Readiness
		closeDB   = func() error { return nil }
	)
	if cfg.Database.DSN != "" {
		store, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("db_open_failed")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		applied, err := migrate.NewManager(store.DB()).Up(ctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("db_migrate_failed")
		}
		for _, path := range applied {
			log.Info().Str("migration", path).Msg("migration_applied")
		}
		users = auth.NewPGUsers(store.DB())
		contactDB = store
		readiness = httpapi.Readiness{DB: store}
		closeDB = store.Close
	} else {
		log.Warn().Msg("ROLODEX_PG_DSN not set; using in-memory stores")
		users = auth.NewInMemoryUsers()
		contactDB = contacts.NewInMemory()
	}

	codec, err := auth.NewCodec([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token_codec_invalid")
	}
	if !cfg.RateLimit.Enabled() {
		log.Warn().Msg("rate limiting disabled")
	}
	log.Info().Dur("token_ttl", codec.TTL()).Msg("token_codec_ready")
	contactSvc := contacts.NewService(contactDB)
	accounts, err := auth.NewService(users, codec, auth.WithPurger(contactSvc))
	if err != nil {
		log.Fatal().Err(err).Msg("account_service_invalid")
	}

	api, err := httpapi.New(httpapi.Options{
		Accounts:       accounts,
		Contacts:       contactSvc,
		Verifier:       codec,
		Resolver:       accounts.Resolver(),
		PublicPrefixes: cfg.Auth.PublicPrefixes,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		DevMode:        cfg.HTTP.DevMode,
		TrustProxy:     cfg.HTTP.TrustProxy,
		RateLimit:      cfg.RateLimit,
		Readiness:      readiness,
		Version:        version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("api_init_failed")
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server_starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen_failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("server_stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown_failed")
	}
	if err := closeDB(); err != nil {
		log.Error().Err(err).Msg("db_close_failed")
	}
	log.Info().Msg("server_stopped")
}
