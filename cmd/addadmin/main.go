package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/config"
	dbstore "github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/db"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/logging"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/services"
)

func main() {
	username := flag.String("username", "", "Admin username (required)")
	email := flag.String("email", "", "Admin email (required)")
	password := flag.String("password", "", "Admin password (required)")
	flag.Parse()

	if *username == "" || *email == "" || *password == "" {
		fmt.Println("Error: username, email, and password are required")
		fmt.Println("\nUsage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if err := createAdmin(cfg, *username, *email, *password); err != nil {
		slog.Error("Failed to create admin", "error", err)
		os.Exit(1)
	}
}

func createAdmin(cfg *config.Config, username, email, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sqliteDB, err := dbstore.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer sqliteDB.Close()

	if err := dbstore.RunMigrations(ctx, sqliteDB, cfg.MigrationsDir); err != nil {
		return err
	}
	store, err := dbstore.NewSQLiteStore(sqliteDB)
	if err != nil {
		return err
	}

	// addadmin never issues tokens.
	auth := services.NewAuthService(store, nil, cfg.TokenTTL)
	u, err := auth.CreateAdmin(ctx, username, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Admin created: id=%s username=%s email=%s\n", u.ID, u.Username, u.Email)
	return nil
}
