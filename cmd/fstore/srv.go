package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fstore/internal/blobstore"
	"fstore/internal/config"
	"fstore/internal/metrics"
	"fstore/internal/server"
	"fstore/internal/store"
	"fstore/internal/store/badgerstore"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the fstore API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.Default().With("component", "server")

			listen := cfg.APIURL
			if cfg.ListenAddr != "" {
				listen = cfg.ListenAddr
			}
			addr, err := server.ListenAddr(listen)
			if err != nil {
				return err
			}

			catalog, closeCatalog, err := openCatalog(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeCatalog(); err != nil {
					logger.Warn("close catalog", "err", err)
				}
			}()

			blobs, err := openBlobStore(ctx, cfg, logger)
			if err != nil {
				return err
			}

			m := metrics.New()
			files := server.NewFileService(catalog, blobs, server.FileServiceConfig{
				LinkBaseURL:     cfg.Links.BaseURL,
				DefaultPageSize: cfg.Listing.DefaultPageSize,
				MaxPageSize:     cfg.Listing.MaxPageSize,
			}, m, logger)

			grace := cfg.GCGracePeriod()
			if interval := cfg.GCInterval(); interval > 0 {
				logger.Info("periodic blob gc enabled", "interval", interval, "grace_period", grace)
				go files.RunPeriodicGC(ctx, interval, grace)
			}

			if cfg.Admin.TokenHash == "" {
				logger.Info("admin routes disabled; set admin.token_hash to enable")
			}

			srv := server.New(files, server.Options{
				Addr:           addr,
				AdminTokenHash: cfg.Admin.TokenHash,
				MaxUploadBytes: cfg.Uploads.MaxBytes,
				GCGracePeriod:  grace,
				Metrics:        m,
				Logger:         logger,
			})
			return srv.ListenAndServe(ctx)
		},
	}
}

func openCatalog(cfg *config.Config, logger *slog.Logger) (store.Catalog, func() error, error) {
	switch cfg.Catalog.Backend {
	case "badger":
		logger.Info("opening badger catalog", "dir", cfg.Catalog.BadgerDir)
		st, err := badgerstore.Open(cfg.Catalog.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "", "sqlite":
		if cfg.DBPath == "" {
			return nil, nil, fmt.Errorf("db path is required")
		}
		logger.Info("opening database", "path", cfg.DBPath)
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown catalog backend %q", cfg.Catalog.Backend)
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobstore.BlobStore, error) {
	switch cfg.Blobs.Backend {
	case "s3":
		s3cfg := cfg.Blobs.S3
		logger.Info("using s3 blob store", "bucket", s3cfg.Bucket, "region", s3cfg.Region, "endpoint", s3cfg.Endpoint)
		client, err := blobstore.NewS3Client(ctx, blobstore.S3ClientConfig{
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			MaxAttempts:     s3cfg.MaxAttempts,
		})
		if err != nil {
			return nil, err
		}
		return blobstore.NewS3Store(ctx, blobstore.S3StoreConfig{
			Client:   client,
			Bucket:   s3cfg.Bucket,
			Prefix:   s3cfg.Prefix,
			PartSize: cfg.S3PartSizeBytes(),
		})
	case "", "local":
		logger.Info("using local blob store", "root", cfg.Blobs.Root)
		return blobstore.NewLocalStore(cfg.Blobs.Root)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blobs.Backend)
	}
}
