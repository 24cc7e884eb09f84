package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdesk/internal/api"
	cfgpkg "github.com/local/pdfdesk/internal/config"
	"github.com/local/pdfdesk/internal/converter"
	"github.com/local/pdfdesk/internal/jobs"
	"github.com/local/pdfdesk/internal/limiter"
	logpkg "github.com/local/pdfdesk/internal/logger"
	"github.com/local/pdfdesk/internal/metrics"
	"github.com/local/pdfdesk/internal/source"
	"github.com/local/pdfdesk/internal/statuscheck"
)

func main() {
	cfg, err := cfgpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	// Init logging
	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
	}
	defer logpkg.Close()

	metrics.Init()

	store, err := jobs.NewStore(jobs.Options{
		MediaRoot:  cfg.Storage.MediaRoot,
		URLPrefix:  cfg.Storage.URLPrefix,
		Extensions: cfg.Storage.Extensions,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open job store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Dependencies{
		Store:          store,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
	}
	checks := statuscheck.Options{
		MediaRoot:   store.Root(),
		LibreOffice: cfg.Converter.Binary,
	}

	// Rate limiter (optional)
	if cfg.RateLimit.RedisURL != "" {
		rl, err := limiter.New(limiter.Options{RedisURL: cfg.RateLimit.RedisURL, Limit: cfg.RateLimit.PerMinute, Window: time.Minute})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rl.Close()
		deps.Limiter = rl
		checks.Redis = rl
	}

	// Remote sources (optional)
	srcOpts := source.Options{
		AllowRemote: cfg.Sources.AllowRemote,
		MaxBytes:    cfg.Server.MaxUploadBytes(),
		HTTPTimeout: cfg.Sources.HTTPTimeout,
	}
	if cfg.Sources.AllowRemote {
		s3c, err := source.NewS3Client(ctx, source.S3Config{
			Endpoint:  cfg.Sources.S3Endpoint,
			AccessKey: cfg.Sources.S3AccessKey,
			SecretKey: cfg.Sources.S3SecretKey,
			Region:    cfg.Sources.Region,
		})
		if err != nil {
			log.Warn().Err(err).Msg("s3 client unavailable, s3:// sources disabled")
		} else {
			srcOpts.S3 = s3c
			if cfg.Sources.Bucket != "" {
				checks.S3, checks.S3Bucket = s3c, cfg.Sources.Bucket
			}
		}
	}
	deps.Fetcher = source.New(srcOpts)

	conv := converter.NewLibreOffice(converter.Options{
		Binary:     cfg.Converter.Binary,
		MaxWorkers: cfg.Converter.MaxWorkers,
		Timeout:    cfg.Converter.Timeout,
	})
	if !conv.Available() {
		log.Warn().Str("binary", conv.Binary()).Msg("LibreOffice not found, office conversion disabled")
	}
	deps.Converter = conv
	deps.Checker = statuscheck.New(checks)

	// Retention sweeper (optional)
	if cfg.Storage.SweepInterval > 0 {
		go store.RunSweeper(ctx, cfg.Storage.SweepInterval, cfg.Storage.Retention, metrics.AddSwept)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.New(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("media_root", store.Root()).Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	log.Info().Msg("shutdown complete")
}
