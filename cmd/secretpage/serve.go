package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	sp "github.com/panyam/secretpage"
	"github.com/panyam/secretpage/config"
	"github.com/panyam/secretpage/oauth2"
	"github.com/panyam/secretpage/stores/gorm"
)

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			slog.SetDefault(cfg.NewLogger())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func migrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			slog.SetDefault(cfg.NewLogger())
			_, closeApp, err := buildApp(cfg)
			if err != nil {
				return err
			}
			closeApp()
			slog.Info("database migrated")
			return nil
		},
	}
}

// buildApp opens the database, migrates it and wires the stores, strategies
// and session manager into an App.
func buildApp(cfg *config.Config) (*sp.App, func(), error) {
	db, err := gorm.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if err := gorm.AutoMigrate(db); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrate accounts: %w", err)
	}
	sessionStore, err := gorm.NewSessionStore(db, cfg.SessionCleanupInterval)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	closeApp := func() {
		if cfg.SessionCleanupInterval > 0 {
			sessionStore.StopCleanup()
		}
		closeDB()
	}

	accounts := gorm.NewAccountStore(db)
	sessions := sp.NewSessionManager(accounts, sp.SessionConfig{
		Store:        sessionStore,
		Lifetime:     cfg.SessionLifetime,
		IdleTimeout:  cfg.SessionIdleTimeout,
		CookieSecure: cfg.CookieSecure,
	})

	var external sp.ExternalStrategy
	if cfg.Google.Enabled() {
		google := oauth2.NewGoogleStrategy(accounts, cfg.Google.ClientID, cfg.Google.ClientSecret,
			cfg.Google.CallbackURL, []byte(cfg.Google.StateSecret))
		google.ExchangeTimeout = cfg.Google.ExchangeTimeout
		external = google
	} else {
		slog.Warn("Google sign in disabled: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")
	}

	return sp.New(accounts, sessions, external), closeApp, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	app, closeApp, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
