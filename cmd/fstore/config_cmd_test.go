package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fstore/internal/config"
)

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FSTORE_CONFIG_DIR", dir)
	t.Setenv(logLevelEnvKey, "")
	cfg := config.Default()

	out, err := runCLI(t, &cfg, "config", "get", "listing.default_page_size")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "10" {
		t.Fatalf("expected default page size 10, got %q", out)
	}

	if _, err := runCLI(t, &cfg, "config", "get", "no.such.key"); err == nil {
		t.Fatal("expected unknown key error")
	}

	if _, err := runCLI(t, &cfg, "config", "set", "gc.interval", "30m"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, ".fstore.toml"))
	if err != nil {
		t.Fatalf("read config file: %v", err)
	}
	if !strings.Contains(string(raw), "30m") {
		t.Fatalf("expected gc.interval in config file, got %q", raw)
	}

	out, err = runCLI(t, &cfg, "config", "list")
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	if !strings.Contains(out, "blobs.backend = local") {
		t.Fatalf("expected labelled listing, got %q", out)
	}
}
