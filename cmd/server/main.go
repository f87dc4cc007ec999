package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/api"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/config"
	dbstore "github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/db"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/logging"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/middleware"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/sentiment"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	sqliteDB, err := dbstore.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sqliteDB.Close(); cerr != nil {
			slog.Warn("Failed to close sqlite db", "error", cerr)
		}
	}()

	if err := dbstore.RunMigrations(ctx, sqliteDB, cfg.MigrationsDir); err != nil {
		return err
	}
	store, err := dbstore.NewSQLiteStore(sqliteDB)
	if err != nil {
		return err
	}
	if err := SeedQuestionsIfEmpty(ctx, store, cfg.QuestionSeedFile); err != nil {
		return err
	}

	authn := middleware.NewAuthenticator(cfg.JWTSecret, nil)
	router := api.NewRouter(
		services.NewFeedbackService(store, store, sentiment.Default()),
		services.NewAnalyticsService(store),
		services.NewAuthService(store, authn.SignToken, cfg.TokenTTL),
		services.NewExportService(store),
		authn,
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Handler(cfg.CORSAllowedOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := runGracefulShutdown(srv, cfg.ShutdownTimeout)

	slog.Info("Feedback server listening", "addr", cfg.Addr, "env", cfg.AppEnv)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func runGracefulShutdown(srv *http.Server, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer close(done)
		<-sigChan
		slog.Info("Shutdown signal received, draining requests...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()
	return done
}
