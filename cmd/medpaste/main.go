package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/medpaste/internal/config"
	"github.com/ehr/medpaste/internal/domain/medsheet"
	"github.com/ehr/medpaste/internal/platform/auth"
	"github.com/ehr/medpaste/internal/platform/clipboard"
	"github.com/ehr/medpaste/internal/platform/db"
	"github.com/ehr/medpaste/internal/platform/hipaa"
	"github.com/ehr/medpaste/internal/platform/middleware"
	"github.com/ehr/medpaste/internal/platform/telemetry"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "medpaste",
		Short:        "Medication clipboard parser and sheet API",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())

	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the medication sheet API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logger
	logger := newLogger(cfg)

	resolved, err := cfg.Validate()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	loc := resolved.Location
	signingKey := resolved.SigningKey
	phiKey := resolved.EncryptionKey

	// Storage
	ctx := context.Background()
	var (
		pool   *pgxpool.Pool
		sheets medsheet.Repository
	)
	if cfg.UsesMemoryStore() {
		logger.Warn().Msg("DATABASE_URL not set; medication sheets are kept in memory")
		sheets = medsheet.NewMemoryRepo()
	} else {
		pool, err = db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		var enc *hipaa.PHIEncryptor
		if phiKey != nil {
			if enc, err = hipaa.NewPHIEncryptor(phiKey); err != nil {
				logger.Fatal().Err(err).Msg("failed to init PHI encryptor")
			}
		} else {
			logger.Warn().Msg("PHI_ENCRYPTION_KEY not set; medication sheets are stored unencrypted")
		}
		sheets = medsheet.NewRepoPG(pool, enc)
	}

	// Telemetry
	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceVersion: version,
		Environment:    cfg.Env,
		MetricsEnabled: telemetry.BoolPtr(cfg.MetricsEnabled),
		RuntimeMetrics: true,
	})

	// Parser and service
	parser := clipboard.New(
		clipboard.WithLocation(loc),
		clipboard.WithLogger(logger),
	)
	svc := medsheet.NewService(sheets, parser, logger)
	svc.SetTelemetry(tp)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(tp.MetricsMiddleware())
	e.Use(middleware.BodyLimit(cfg.PasteBodyLimit))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: signingKey,
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		logger.Warn().Msg("development auth enabled; requests without a token run as admin")
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// Health and metrics
	e.GET("/health", db.HealthHandler(pool))
	if cfg.MetricsEnabled {
		e.GET("/metrics", tp.PrometheusHandler())
	}

	// API
	apiV1 := e.Group("/api/v1")
	medsheet.NewHandler(svc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().
			Str("addr", addr).
			Str("timezone", loc.String()).
			Bool("memory_store", cfg.UsesMemoryStore()).
			Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
