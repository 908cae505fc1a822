package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "DATABASE_PATH", "JWT_SECRET", "CORS_ORIGINS",
		"MAX_UPLOAD_SIZE", "FILE_STORAGE_PATH", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY",
	} {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.MaxUploadSize != 20971520 {
		t.Errorf("MaxUploadSize = %d, want 20971520", cfg.MaxUploadSize)
	}
	if cfg.FileStoragePath != "./data/media" {
		t.Errorf("FileStoragePath = %q", cfg.FileStoragePath)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_PATH", "/var/lib/calicanto/calicanto.db")
	t.Setenv("MAX_UPLOAD_SIZE", "1048576")
	t.Setenv("VAPID_PUBLIC_KEY", "pub-key")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "production")
	}
	if cfg.DatabasePath != "/var/lib/calicanto/calicanto.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.MaxUploadSize != 1048576 {
		t.Errorf("MaxUploadSize = %d, want 1048576", cfg.MaxUploadSize)
	}
	if cfg.VAPIDPublicKey != "pub-key" {
		t.Errorf("VAPIDPublicKey = %q", cfg.VAPIDPublicKey)
	}
}

func TestParseInt64InvalidFallsBack(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE", "not-a-number")

	cfg := Load()

	if cfg.MaxUploadSize != 20971520 {
		t.Errorf("MaxUploadSize = %d, want default 20971520", cfg.MaxUploadSize)
	}
}
