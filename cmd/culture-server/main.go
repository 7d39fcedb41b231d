// Package main is the entry point for the certificate access server.
// It serves time-bound secure URLs and signed access tokens for
// certificate files issued by the culture platform.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/cache"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/cache/memory"
	rediscache "github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/cache/redis"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/config"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/handler"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/lock"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/metrics"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/renderer"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/repository"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/repository/postgres"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/repository/sqlite"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/service"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/storage"
	localstore "github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/storage/local"
	s3store "github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/storage/s3"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/token"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger := newLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting certificate access server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}

	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Data layer.
	var (
		certs  repository.CertificateRepository
		orgs   repository.OrganizationRepository
		closer func()
	)
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:        cfg.Database.Path,
			JournalMode: cfg.Database.JournalMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		}, logger)
		if err != nil {
			return err
		}
		certs = sqlite.NewCertificateRepository(db)
		orgs = sqlite.NewOrganizationRepository(db)
		closer = func() { _ = db.Close() }
	} else {
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    int(cfg.Database.MaxConns),
			MaxIdleConns:    int(cfg.Database.MinConns),
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return err
		}
		certs = postgres.NewCertificateRepository(db)
		orgs = postgres.NewOrganizationRepository(db)
		closer = func() { _ = db.Close() }
	}
	defer closer()

	// Token usage counters and the revocation list.
	var counters cache.Store
	var redisStore *rediscache.Store
	if cfg.Redis.Enabled {
		store, err := rediscache.NewStore(ctx, rediscache.Config{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		redisStore = store
		counters = store
	} else {
		store := memory.NewStore()
		defer store.Stop()
		counters = store
	}

	// File storage.
	var files storage.FileStore
	switch cfg.Storage.Backend {
	case "s3":
		store, err := s3store.NewStore(ctx, s3store.Config{
			Endpoint:        cfg.Storage.S3.Endpoint,
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
		}, logger)
		if err != nil {
			return err
		}
		files = store
	default:
		store, err := localstore.NewStore(cfg.Storage.DataDir, logger)
		if err != nil {
			return err
		}
		files = store
	}

	tokens, err := token.NewService(token.Config{
		Secret:           cfg.Tokens.Secret,
		Issuer:           cfg.Tokens.Issuer,
		Audience:         cfg.Tokens.Audience,
		AccessTokenTTL:   cfg.Tokens.AccessTokenTTL,
		DownloadTokenTTL: cfg.Tokens.DownloadTokenTTL,
		ShareTokenTTL:    cfg.Tokens.ShareTokenTTL,
		RefreshTokenTTL:  cfg.Tokens.RefreshTokenTTL,
		RotateRefresh:    cfg.Tokens.RotateRefresh,
	}, counters, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	rend := renderer.NewHTTPRenderer(cfg.Renderer.URL, cfg.Renderer.Timeout, logger)

	var locks lock.Locker
	if redisStore != nil {
		locks = lock.NewRedisLocker(redisStore.Client(), uuid.NewString())
	} else {
		ml := lock.NewMemoryLocker()
		defer ml.Stop()
		locks = ml
	}

	access := service.NewAccessService(files, certs, orgs, rend, locks, m, logger)
	issue := service.NewIssueService(tokens, files, certs, orgs, rend, cfg.BaseURL, m, logger)

	router := handler.NewRouter(handler.RouterConfig{
		CertificateHandler: handler.NewCertificateHandler(handler.CertificateHandlerConfig{
			AccessService: access,
			TokenService:  tokens,
			Metrics:       m,
			Logger:        logger,
		}),
		AdminHandler: handler.NewAdminHandler(handler.AdminHandlerConfig{
			IssueService: issue,
			TokenService: tokens,
			APIKeyHash:   cfg.Admin.APIKeyHash,
			Logger:       logger,
		}),
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Registry:       registry,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newLogger builds the process logger from configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
