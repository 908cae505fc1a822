package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/base43/calicanto/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:            "8080",
		Environment:     "test",
		DatabasePath:    filepath.Join(dir, "test.db"),
		FileStoragePath: filepath.Join(dir, "media"),
	}
}

func TestParseSeedArgs(t *testing.T) {
	cfg := testConfig(t)

	opts, err := parseSeedArgs(cfg, nil)
	if err != nil {
		t.Fatalf("No args: %v", err)
	}
	if opts.DatabasePath != cfg.DatabasePath || opts.DryRun {
		t.Errorf("Defaults = %+v", opts)
	}

	opts, err = parseSeedArgs(cfg, []string{"--dry-run", "--database", "/tmp/other.db"})
	if err != nil {
		t.Fatalf("Valid flags: %v", err)
	}
	if !opts.DryRun || opts.DatabasePath != "/tmp/other.db" {
		t.Errorf("Parsed = %+v", opts)
	}

	if _, err := parseSeedArgs(cfg, []string{"--database"}); err == nil {
		t.Error("Missing --database value not rejected")
	}

	if _, err := parseSeedArgs(cfg, []string{"--bogus"}); err == nil {
		t.Error("Unknown flag not rejected")
	}
}

func TestSeedCreatesDefaultChannels(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	if err := runSeed(cfg, &out, nil); err != nil {
		t.Fatalf("runSeed failed: %v", err)
	}

	if !strings.Contains(out.String(), "done: 4 channel(s) created") {
		t.Errorf("Unexpected output: %s", out.String())
	}

	db := openStatusDB(t, cfg.DatabasePath)
	var count int
	db.QueryRow("SELECT COUNT(*) FROM channels WHERE is_active = 1").Scan(&count)
	if count != len(defaultChannels) {
		t.Errorf("Got %d active channels, want %d", count, len(defaultChannels))
	}

	var description string
	db.QueryRow("SELECT description FROM channels WHERE name = 'general'").Scan(&description)
	if description == "" {
		t.Error("Channel 'general' has no description")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	cfg := testConfig(t)

	if err := runSeed(cfg, &bytes.Buffer{}, nil); err != nil {
		t.Fatalf("First seed failed: %v", err)
	}

	var out bytes.Buffer
	if err := runSeed(cfg, &out, nil); err != nil {
		t.Fatalf("Second seed failed: %v", err)
	}
	if !strings.Contains(out.String(), "done: 0 channel(s) created") {
		t.Errorf("Second run output: %s", out.String())
	}
	if strings.Count(out.String(), "already exists") != len(defaultChannels) {
		t.Errorf("Expected every channel to be skipped: %s", out.String())
	}

	db := openStatusDB(t, cfg.DatabasePath)
	var count int
	db.QueryRow("SELECT COUNT(*) FROM channels").Scan(&count)
	if count != len(defaultChannels) {
		t.Errorf("Got %d channels after reseed, want %d", count, len(defaultChannels))
	}
}

func TestSeedDryRun(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	if err := runSeed(cfg, &out, []string{"--dry-run"}); err != nil {
		t.Fatalf("Dry run failed: %v", err)
	}
	if !strings.Contains(out.String(), "dry run: 4 channel(s) would be created") {
		t.Errorf("Dry run output: %s", out.String())
	}

	db := openStatusDB(t, cfg.DatabasePath)
	var count int
	db.QueryRow("SELECT COUNT(*) FROM channels").Scan(&count)
	if count != 0 {
		t.Errorf("Dry run created %d channels", count)
	}
}
