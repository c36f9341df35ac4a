package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicboard/clinicboard/internal/config"
	"github.com/clinicboard/clinicboard/internal/domain/messaging"
	"github.com/clinicboard/clinicboard/internal/domain/patient"
	"github.com/clinicboard/clinicboard/internal/platform/auth"
	"github.com/clinicboard/clinicboard/internal/platform/db"
	"github.com/clinicboard/clinicboard/internal/platform/feedback"
	"github.com/clinicboard/clinicboard/internal/platform/middleware"
	"github.com/clinicboard/clinicboard/internal/platform/websocket"
)

const revocationSweepInterval = 5 * time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	warnDevMode(cfg, logger)

	ctx := context.Background()
	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer store.close()

	srv, err := newServer(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer srv.close()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", store.name).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.echo.Shutdown(shutdownCtx)
}

type server struct {
	echo        *echo.Echo
	revocations *auth.RevocationStore
}

func (s *server) close() {
	s.revocations.Close()
}

func warnDevMode(cfg *config.Config, logger zerolog.Logger) {
	if cfg.IsDev() {
		logger.Warn().Str("env", cfg.Env).Msg("development mode: anonymous requests are treated as the admin user")
	}
}

// newServer wires every route onto a fresh echo instance.
func newServer(ctx context.Context, cfg *config.Config, store *backend, logger zerolog.Logger) (*server, error) {
	secret, err := signingSecret(cfg, logger)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub(logger)
	notifier := feedback.New(cfg.FeedbackDismissAfter,
		feedback.WithListener(feedback.Broadcast(hub, logger)),
		feedback.WithLogger(logger),
	)

	revocations := auth.NewRevocationStore(revocationSweepInterval)
	authSvc := auth.NewService(auth.NewUserStore(store.kv), revocations, secret, cfg.TokenTTL, logger)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authSvc.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			revocations.Close()
			return nil, fmt.Errorf("seed admin: %w", err)
		}
	}

	patientSvc := patient.NewService(patient.NewStore(store.kv), store.blobs, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.MaxBodySize, cfg.MaxUploadSize))
	e.Use(middleware.Sanitize(logger))
	if cfg.RateLimitRPS > 0 {
		e.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}))
	}
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", db.HealthHandler(store.name, store.kv, store.stats))

	authMW := auth.JWTMiddleware(authSvc.JWTConfig())
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(authSvc.JWTConfig())
	}

	api := e.Group("/api/v1")
	auth.NewHandler(authSvc).RegisterRoutes(api, authMW, middleware.RateLimit(middleware.LoginRateLimitConfig()))
	patient.NewHandler(patientSvc, notifier, hub, cfg.PageSize, logger).RegisterRoutes(api, authMW, middleware.Audit(logger))
	messaging.NewHandler(messaging.NewService()).RegisterRoutes(api, authMW)

	session := api.Group("", authMW)
	feedback.NewHandler(notifier).RegisterRoutes(session)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(session)

	return &server{echo: e, revocations: revocations}, nil
}

// signingSecret returns JWT_SECRET, or a per-process random key in
// development when none is configured.
func signingSecret(cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	if !cfg.IsDev() {
		return nil, fmt.Errorf("JWT_SECRET is required outside development")
	}
	b := make([]byte, 32)
	if _, err := crypto_rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	logger.Warn().Msg("JWT_SECRET not set; tokens will not survive a restart")
	return []byte(hex.EncodeToString(b)), nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, db.Migrations()), pool.Close, nil
}
