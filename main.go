package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tulisin/auth"
	"tulisin/config"
	"tulisin/db"
	"tulisin/handlers"
	"tulisin/logging"
	appmw "tulisin/middleware"
	"tulisin/respond"
	"tulisin/services"
)

var (
	version = "dev"
	commit  = "none"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "tulisin",
		Short:        "Tulisin - notes API server",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP server",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE:  runMigrate,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tulisin %s (commit: %s)\n", version, commit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	closer := logging.Setup(cfg.Log.Level, cfg.Log.File)
	return cfg, func() { _ = closer.Close() }, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, closeLogs, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLogs()

	ctx := cmd.Context()
	d, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer d.Close()

	return d.Migrate(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, closeLogs, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLogs()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", version).
		Str("env", cfg.Env).
		Int("port", cfg.Port).
		Str("db_driver", cfg.Database.Driver).
		Msg("Starting Tulisin")

	d, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer d.Close()

	if err := d.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           newApp(cfg, d),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
	return nil
}

// newApp wires services, handlers and middleware around an open database.
func newApp(cfg *config.Config, d *db.DB) http.Handler {
	rs := respond.Responder{Debug: cfg.Debug()}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)

	h := handlers.New(
		d,
		services.NewAuthService(d, tokens, cfg.BcryptCost),
		services.NewSectionService(d),
		services.NewNoteService(d),
		rs,
	)
	limiter := appmw.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	return newRouter(h, tokens, limiter, rs, cfg.TrustProxy)
}
