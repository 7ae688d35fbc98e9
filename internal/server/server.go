package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"fstore/internal/metrics"
	"fstore/internal/store"
)

const (
	allowRemoteEnvKey = "FSTORE_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Options configures the HTTP layer around a FileService.
type Options struct {
	Addr           string
	AdminTokenHash string
	MaxUploadBytes int64
	GCGracePeriod  time.Duration
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Server wraps HTTP handlers for the fstore API.
type Server struct {
	addr           string
	files          *FileService
	catalog        store.Catalog
	metrics        *metrics.Metrics
	logger         *slog.Logger
	adminTokenHash string
	maxUploadBytes int64
	gcGracePeriod  time.Duration
	adminLimiter   *adminLimiter
}

// New creates a new server instance.
func New(files *FileService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var catalog store.Catalog
	if files != nil {
		catalog = files.catalog
	}

	return &Server{
		addr:           opts.Addr,
		files:          files,
		catalog:        catalog,
		metrics:        opts.Metrics,
		logger:         logger,
		adminTokenHash: strings.TrimSpace(opts.AdminTokenHash),
		maxUploadBytes: opts.MaxUploadBytes,
		gcGracePeriod:  opts.GCGracePeriod,
		adminLimiter:   newAdminLimiter(adminMaxFailures, adminFailureWindow, adminBlockDuration),
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// Read and write timeouts stay unset so multi-gigabyte transfers can stream.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.log().Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
