// Package config centralizes environment-driven settings for the innovation
// zone services.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config captures the full environment surface of the service. Storage and
// artifact drivers are resolved by their factories; the values here are the
// single place the variable names are documented.
type Config struct {
	StorageDriver string `env:"INNOZONE_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string `env:"INNOZONE_SQLITE_PATH" envDefault:"innozone.db"`
	PostgresDSN   string `env:"INNOZONE_POSTGRES_DSN"`

	BlobDriver  string `env:"INNOZONE_BLOB_DRIVER" envDefault:"fs"`
	BlobFSRoot  string `env:"INNOZONE_BLOB_FS_ROOT" envDefault:"./artifacts"`
	S3Bucket    string `env:"INNOZONE_BLOB_S3_BUCKET"`
	S3Region    string `env:"INNOZONE_BLOB_S3_REGION"`
	S3Endpoint  string `env:"INNOZONE_BLOB_S3_ENDPOINT"`
	S3PathStyle bool   `env:"INNOZONE_BLOB_S3_PATH_STYLE"`

	DecisionRulesPath  string `env:"INNOZONE_DECISION_RULES"`
	AlertPoliciesPath  string `env:"INNOZONE_ALERT_POLICIES"`
	ObservationLogPath string `env:"INNOZONE_OBSERVATION_LOG" envDefault:"capability-observations.log"`

	LogLevel string `env:"INNOZONE_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the service configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
