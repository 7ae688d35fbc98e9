package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"time"

	"fstore/internal/api"
	"fstore/internal/config"
)

const (
	serverStartTimeout = 3 * time.Second
	serverStopTimeout  = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	healthProbeTimeout = 500 * time.Millisecond
)

// withClient runs fn against the configured server. When api_url points at
// this machine and nothing answers, a temporary "fstore srv" child is
// started for the duration of fn.
func withClient(cfg *config.Config, opts *rootOptions, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)
	if opts != nil && opts.user != "" {
		client = client.WithUserID(opts.user)
	}

	if !serverHealthy(client, healthProbeTimeout) && isLoopbackURL(cfg.APIURL) {
		child, err := startLocalServer(cfg)
		if err != nil {
			return err
		}
		defer child.stop()
		if err := child.waitHealthy(client, serverStartTimeout); err != nil {
			return err
		}
	}
	return fn(client)
}

func serverHealthy(client *api.Client, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err := client.Health(ctx)
	return err == nil
}

func isLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type localServer struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func startLocalServer(cfg *config.Config) (*localServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"FSTORE_API_URL="+cfg.APIURL,
		"FSTORE_DB="+cfg.DBPath,
		"FSTORE_BADGER_DIR="+cfg.Catalog.BadgerDir,
		"FSTORE_BLOBS_ROOT="+cfg.Blobs.Root,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}

	ls := &localServer{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(ls.done)
	}()
	return ls, nil
}

func (ls *localServer) waitHealthy(client *api.Client, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ls.done:
			return errors.New("local server exited during startup; run fstore srv to see why")
		case <-deadline:
			return errors.New("server did not start in time")
		case <-ticker.C:
			if serverHealthy(client, 2*serverPollInterval) {
				return nil
			}
		}
	}
}

// stop interrupts the child so srv can shut down cleanly, killing it if it
// lingers.
func (ls *localServer) stop() {
	_ = ls.cmd.Process.Signal(os.Interrupt)
	select {
	case <-ls.done:
	case <-time.After(serverStopTimeout):
		_ = ls.cmd.Process.Kill()
		<-ls.done
	}
}
