package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{"INNOZONE_STORAGE_DRIVER", "INNOZONE_BLOB_DRIVER", "INNOZONE_LOG_LEVEL", "INNOZONE_OBSERVATION_LOG"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Fatalf("storage driver = %q", cfg.StorageDriver)
	}
	if cfg.BlobDriver != "fs" {
		t.Fatalf("blob driver = %q", cfg.BlobDriver)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.ObservationLogPath != "capability-observations.log" {
		t.Fatalf("observation log = %q", cfg.ObservationLogPath)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INNOZONE_STORAGE_DRIVER", "postgres")
	t.Setenv("INNOZONE_POSTGRES_DSN", "postgres://db/innozone")
	t.Setenv("INNOZONE_BLOB_DRIVER", "s3")
	t.Setenv("INNOZONE_BLOB_S3_BUCKET", "artifacts")
	t.Setenv("INNOZONE_BLOB_S3_PATH_STYLE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != "postgres" || cfg.PostgresDSN != "postgres://db/innozone" {
		t.Fatalf("postgres config = %q %q", cfg.StorageDriver, cfg.PostgresDSN)
	}
	if cfg.BlobDriver != "s3" || cfg.S3Bucket != "artifacts" || !cfg.S3PathStyle {
		t.Fatalf("s3 config = %+v", cfg)
	}
}
