package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const devJWTSecret = "feedback-dev-secret"

type Config struct {
	AppEnv            string `env:"APP_ENV" default:"development"`
	Addr              string `env:"FEEDBACK_ADDR" default:":5000"`
	DatabasePath      string `env:"DATABASE_PATH" default:"data/feedback.db"`
	MigrationsDir     string `env:"MIGRATIONS_DIR"`
	JWTSecret         string `env:"JWT_SECRET"`
	LogLevel          string `env:"LOG_LEVEL" default:"info"`
	LogFormat         string `env:"LOG_FORMAT" default:"text"`
	QuestionSeedFile  string `env:"QUESTION_SEED_FILE"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" default:"*"`

	TokenTTL        time.Duration `env:"TOKEN_TTL" default:"168h"` // 7 days
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return errors.New("JWT_SECRET is required")
		}
		slog.Warn("JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = devJWTSecret
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return errors.New("DATABASE_PATH is required")
	}
	if cfg.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", cfg.ShutdownTimeout)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}
	return nil
}
