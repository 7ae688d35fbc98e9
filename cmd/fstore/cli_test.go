package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fstore/internal/api"
	"fstore/internal/blobstore"
	"fstore/internal/config"
	"fstore/internal/format"
	"fstore/internal/metrics"
	"fstore/internal/server"
	"fstore/internal/store/badgerstore"
)

func newCLITestEnv(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(logLevelEnvKey, "")
	t.Setenv("FSTORE_USER", "")
	t.Setenv(adminTokenEnvKey, "")

	catalog, err := badgerstore.OpenInMemory()
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = catalog.Close() })

	blobs, err := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	files := server.NewFileService(catalog, blobs, server.FileServiceConfig{}, m, logger)
	srv := server.New(files, server.Options{Metrics: m, Logger: logger})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIURL = ts.URL
	return &cfg
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFormatter := stdout, outputFormatter
	stdout = &buf
	t.Cleanup(func() {
		stdout = prevOut
		outputFormatter = prevFormatter
	})

	cmd := newRootCmd(cfg)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	outputFormatter = format.JSONFormatter{}
	return buf.String(), err
}

func TestCLIFileLifecycle(t *testing.T) {
	cfg := newCLITestEnv(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(src, []byte("quarterly numbers\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, err := runCLI(t, cfg, "--user", "alice", "-o", "json", "upload", src, "--visibility", "public", "--tag", "Finance,q3")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var uploaded api.FileResponse
	if err := json.Unmarshal([]byte(out), &uploaded); err != nil {
		t.Fatalf("decode upload output %q: %v", out, err)
	}
	if uploaded.Filename != "report.txt" || uploaded.Visibility != "PUBLIC" || uploaded.Size != 18 {
		t.Fatalf("unexpected upload response %+v", uploaded)
	}
	if len(uploaded.Tags) != 2 || uploaded.Tags[0] != "Finance" {
		t.Fatalf("expected both tags, got %v", uploaded.Tags)
	}

	if _, err := runCLI(t, cfg, "--user", "alice", "upload", src, "--name", "copy.txt"); err == nil {
		t.Fatal("expected duplicate content rejection")
	} else if !api.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	out, err = runCLI(t, cfg, "--user", "alice", "ls")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "report.txt") || !strings.Contains(out, "18 B") {
		t.Fatalf("expected table row with human size, got %q", out)
	}

	out, err = runCLI(t, cfg, "-o", "yaml", "public")
	if err != nil {
		t.Fatalf("public: %v", err)
	}
	if !strings.Contains(out, "filename: report.txt") {
		t.Fatalf("expected yaml listing, got %q", out)
	}

	target := filepath.Join(dir, "downloaded.txt")
	if _, err := runCLI(t, cfg, "get", uploaded.PublicToken, "-O", target); err != nil {
		t.Fatalf("get: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(got) != "quarterly numbers\n" {
		t.Fatalf("unexpected download content %q", got)
	}
	if _, err := runCLI(t, cfg, "get", uploaded.PublicToken, "-O", target); err == nil {
		t.Fatal("expected refusal to overwrite without --force")
	}

	if _, err := runCLI(t, cfg, "--user", "bob", "mv", uploaded.ID, "stolen.txt"); !api.IsForbidden(err) {
		t.Fatalf("expected forbidden rename for non-owner, got %v", err)
	}
	out, err = runCLI(t, cfg, "--user", "alice", "mv", uploaded.ID, "final.txt")
	if err != nil {
		t.Fatalf("mv: %v", err)
	}
	if !strings.Contains(out, "final.txt") {
		t.Fatalf("unexpected mv output %q", out)
	}

	if _, err := runCLI(t, cfg, "--user", "alice", "rm", uploaded.ID); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, err := runCLI(t, cfg, "get", uploaded.PublicToken, "-O", filepath.Join(dir, "gone.txt")); !api.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestCLIGCRequiresConfirmation(t *testing.T) {
	cfg := newCLITestEnv(t)
	if _, err := runCLI(t, cfg, "gc", "--apply"); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	// Admin routes are disabled without a configured hash.
	if _, err := runCLI(t, cfg, "gc", "--token", "0123456789abcdef"); err == nil {
		t.Fatal("expected unauthorized gc")
	}
}

func TestCLIRejectsUnknownOutput(t *testing.T) {
	cfg := newCLITestEnv(t)
	if _, err := runCLI(t, cfg, "-o", "xml", "public"); err == nil {
		t.Fatal("expected unknown output format error")
	}
}
