package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"giftregistry/api/internal/app"
	"giftregistry/api/internal/auth"
	"giftregistry/api/internal/config"
	"giftregistry/api/internal/email"
	"giftregistry/api/internal/export"
	"giftregistry/api/internal/logger"
	"giftregistry/api/internal/metrics"
	"giftregistry/api/internal/registry"
	"giftregistry/api/internal/search"
	"giftregistry/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	m := metrics.New()

	opened, err := openBackend(ctx, cfg, log.Component("store"))
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.StoreBackend).Msg("store unavailable")
	}
	defer func() {
		if err := store.Close(opened.store); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()
	dataStore := store.Instrument(opened.store, cfg.StoreBackend, m, log.Component("store"))

	verifier, err := auth.NewVerifier(cfg.WriteToken, cfg.WriteTokenHash)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid write credential configuration")
	}
	if !verifier.Configured() {
		log.Warn().Msg("REGISTRY_WRITE_TOKEN is empty; every write will be rejected")
	}

	var primary search.Backend
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log.Component("search"))
		defer meiliClient.Close()
		primary = meiliClient
	}
	var fallback search.Searcher
	if opened.db != nil {
		fallback = search.NewPgFTS(opened.db)
	}
	var searchService *search.Service
	if primary != nil || fallback != nil {
		searchService = search.NewService(primary, fallback, log.Component("search"))
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	notifier := email.NewNotifier(mailer, email.ParseRecipients(cfg.NotifyPublish), log.Component("email"))
	if notifier.Enabled() {
		log.Info().Str("smtp", cfg.SMTPHost).Msg("publish notices enabled")
	}

	deps := app.Deps{
		Search:   searchService,
		Notifier: notifier,
		Exporter: export.NewService(),
		Metrics:  m,
		Log:      log,
	}
	opts := append(app.RegistryHooks(deps),
		registry.WithLogger(log.Component("registry")),
		registry.WithMetaCAS(cfg.MetaCAS),
	)
	reg := registry.New(dataStore, registry.DirSeed{Dir: cfg.SeedDir}, opts...)

	service := app.New(reg, verifier, deps)
	if _, err := reg.EnsureInitialized(ctx); err != nil {
		log.Warn().Err(err).Msg("bootstrap failed; will retry on first request")
	} else if err := service.ReindexPublished(ctx); err != nil {
		log.Warn().Err(err).Msg("search reindex failed")
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.LogServerStart(cfg.Addr, cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	searchService.Wait()
	notifier.Wait()
}
