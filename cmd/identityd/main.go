package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/justexisted/bonitaforward-identity/internal/api"
	"github.com/justexisted/bonitaforward-identity/internal/core/service"
	"github.com/justexisted/bonitaforward-identity/internal/infrastructure/adminapi"
	"github.com/justexisted/bonitaforward-identity/internal/infrastructure/authgw"
	"github.com/justexisted/bonitaforward-identity/internal/infrastructure/config"
	mongodb "github.com/justexisted/bonitaforward-identity/internal/infrastructure/db/mongo"
	redisdb "github.com/justexisted/bonitaforward-identity/internal/infrastructure/db/redis"
	"github.com/justexisted/bonitaforward-identity/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// @title        BonitaForward Identity Service
// @version      1.0
// @description  Session and profile synchronization facade: reconciles the remote auth provider's session lifecycle with locally persisted member profiles and publishes a single authoritative identity context.
// @BasePath     /
//
// @securityDefinitions.apikey BearerAuth
// @in     header
// @name   Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		zerolog.New(os.Stderr).Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	profiles := mongodb.NewProfileRepository(db)
	if err := profiles.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("profile index creation failed, continuing")
	}

	sealKey, err := cfg.Draft.SealKeyBytes()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid draft seal key")
	}
	drafts, err := redisdb.NewDraftStore(rdb, cfg.Draft.TTL, sealKey)
	if err != nil {
		log.Fatal().Err(err).Msg("draft store init failed")
	}

	// --- Provider and core services ---
	provider := authgw.NewClient(authgw.Config{
		BaseURL:       cfg.Auth.BaseURL,
		APIKey:        cfg.Auth.APIKey,
		Timeout:       cfg.Auth.Timeout,
		RefreshMargin: cfg.Auth.RefreshMargin,
	}, logger.Component("authgw"))
	provider.Start(ctx)

	identity := service.NewIdentityService(service.Deps{
		Provider:         provider,
		Profiles:         profiles,
		Drafts:           drafts,
		Scope:            cfg.Draft.Scope,
		ConfirmReadDelay: cfg.Profile.ConfirmReadDelay,
		Logger:           logger.Component("identity"),
	})

	endpoint := adminapi.NewClient(adminapi.Config{
		URL:     cfg.Verifier.URL,
		Timeout: cfg.Verifier.Timeout,
	}, logger.Component("adminapi"))
	verifier := service.NewAdminVerifier(endpoint, identity, cfg.Verifier.Allowlist, logger.Component("verifier"))
	identity.RegisterCache(verifier)

	identity.Start(ctx)

	// --- HTTP facade ---
	e := api.NewRouter(api.RouterDeps{
		Auth:         identity,
		Identity:     identity,
		Verifier:     verifier,
		Mongo:        db,
		Redis:        rdb,
		ServiceToken: cfg.ServiceToken,
		Logger:       logger.Component("http"),
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("identity service started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}
