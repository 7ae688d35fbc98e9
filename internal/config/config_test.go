package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.Catalog.Backend != "sqlite" || cfg.Blobs.Backend != "local" {
		t.Fatalf("unexpected backends %q/%q", cfg.Catalog.Backend, cfg.Blobs.Backend)
	}
	if cfg.Listing.DefaultPageSize != 10 || cfg.Listing.MaxPageSize != 1000 {
		t.Fatalf("unexpected listing defaults %+v", cfg.Listing)
	}
	if cfg.GCGracePeriod() != time.Hour {
		t.Fatalf("expected 1h grace period, got %v", cfg.GCGracePeriod())
	}
	if cfg.GCInterval() != 0 {
		t.Fatalf("expected periodic gc disabled, got %v", cfg.GCInterval())
	}
	if err := Validate(&cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	t.Setenv("FSTORE_DB", "")
	t.Setenv("FSTORE_BLOBS_ROOT", filepath.Join(dir, "blobs-from-env"))
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(`api_url = "http://localhost:9999"
log_level = "warn"

[catalog]
backend = "badger"

[listing]
default_page_size = 25

[gc]
interval = "30m"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" || cfg.LogLevel != "warn" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Catalog.Backend != "badger" || cfg.Listing.DefaultPageSize != 25 {
		t.Fatalf("nested values not applied: %+v", cfg)
	}
	if cfg.Listing.MaxPageSize != DefaultMaxPageSize {
		t.Fatalf("unset nested values should keep defaults, got %d", cfg.Listing.MaxPageSize)
	}
	if cfg.GCInterval() != 30*time.Minute {
		t.Fatalf("unexpected gc interval %v", cfg.GCInterval())
	}
	if cfg.Blobs.Root != filepath.Join(dir, "blobs-from-env") {
		t.Fatalf("env override not applied: %q", cfg.Blobs.Root)
	}
	if cfg.DBPath == "" || cfg.Catalog.BadgerDir == "" {
		t.Fatal("path defaults should be filled")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(configDirEnvKey, dir)
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(`[blobs]
backend = "s3"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "blobs.s3.bucket") {
		t.Fatalf("expected s3 bucket validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown catalog", mutate: func(c *Config) { c.Catalog.Backend = "postgres" }, wantErr: "Backend"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "LogLevel"},
		{name: "bad api url", mutate: func(c *Config) { c.APIURL = "not a url" }, wantErr: "APIURL"},
		{name: "bad duration", mutate: func(c *Config) { c.GC.Interval = "often" }, wantErr: "duration"},
		{name: "page sizes inverted", mutate: func(c *Config) { c.Listing.DefaultPageSize = 50; c.Listing.MaxPageSize = 20 }, wantErr: "exceeds"},
		{name: "small part size", mutate: func(c *Config) {
			c.Blobs.Backend = "s3"
			c.Blobs.S3.Bucket = "b"
			c.Blobs.S3.Region = "us-east-1"
			c.Blobs.S3.PartSizeMB = 1
		}, wantErr: "part_size_mb"},
		{name: "half credentials", mutate: func(c *Config) {
			c.Blobs.Backend = "s3"
			c.Blobs.S3.Bucket = "b"
			c.Blobs.S3.Region = "us-east-1"
			c.Blobs.S3.AccessKeyID = "key"
		}, wantErr: "set together"},
		{name: "plaintext admin token", mutate: func(c *Config) { c.Admin.TokenHash = "secret" }, wantErr: "bcrypt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAllowedKeysAndGet(t *testing.T) {
	keys := AllowedKeys()
	for _, key := range []string{"api_url", "catalog.backend", "blobs.s3.bucket", "listing.max_page_size", "gc.grace_period", "admin.token_hash"} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %s to be allowed (keys: %v)", key, keys)
		}
	}
	if IsAllowedKey("project_prefix") {
		t.Fatal("unexpected key allowed")
	}

	cfg := Default()
	cfg.Blobs.S3.SecretAccessKey = "hunter2"
	if got, _ := cfg.Get("listing.max_page_size"); got != "1000" {
		t.Fatalf("unexpected value %q", got)
	}
	if got, _ := cfg.Get("blobs.s3.secret_access_key"); got == "hunter2" {
		t.Fatal("secret should be masked")
	}
	if _, err := cfg.Get("nope"); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestSetKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", configFileName)

	if err := SetKey(path, "blobs.s3.bucket", "files"); err != nil {
		t.Fatalf("set bucket: %v", err)
	}
	if err := SetKey(path, "listing.default_page_size", "20"); err != nil {
		t.Fatalf("set page size: %v", err)
	}
	if err := SetKey(path, "gc.interval", "15m"); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if err := SetKey(path, "gc.interval", "soon"); err == nil {
		t.Fatal("expected invalid duration error")
	}
	if err := SetKey(path, "listing.default_page_size", "-1"); err == nil {
		t.Fatal("expected invalid integer error")
	}
	if err := SetKey(path, "nope", "x"); err == nil {
		t.Fatal("expected unknown key error")
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Blobs.S3.Bucket != "files" || cfg.Listing.DefaultPageSize != 20 || cfg.GCInterval() != 15*time.Minute {
		t.Fatalf("unexpected reloaded config %+v", cfg)
	}
}
