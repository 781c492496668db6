// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Shivanand-hulikatti/hall-attendance/internal/database"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	StoreBackend string        `env:"STORE_BACKEND" envDefault:"postgres"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"attendance.db"`
	TxRetries    int           `env:"STORE_TX_RETRIES" envDefault:"25"`
	JWTSecret    string        `env:"JWT_SECRET" envDefault:"change-me"`
	JWTTTL       time.Duration `env:"JWT_TTL" envDefault:"12h"`
	DB           database.Config
}

// Load reads an optional dotenv file, then parses the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	var cfg Config
	if err := godotenv.Load(dotEnvPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load dotenv: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func dotEnvPath() string {
	var pre struct {
		File string `env:"DOTENV_FILE" envDefault:".env"`
	}
	_ = env.Parse(&pre)
	return pre.File
}

// Validate checks values that env tags cannot express.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case database.BackendPostgres, database.BackendSQLite, database.BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.TxRetries <= 0 {
		return fmt.Errorf("STORE_TX_RETRIES must be positive")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// StoreOptions returns the record store settings.
func (c Config) StoreOptions() database.StoreOptions {
	return database.StoreOptions{
		Backend:    c.StoreBackend,
		SQLitePath: c.SQLitePath,
		Postgres:   c.DB,
		MaxRetries: c.TxRetries,
	}
}
