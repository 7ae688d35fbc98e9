package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fstore/internal/blobstore"
)

// DefaultGCGracePeriod keeps freshly committed blobs whose record create
// may still be in flight.
const DefaultGCGracePeriod = time.Hour

// GCOptions controls one blob garbage collection run.
type GCOptions struct {
	DryRun      bool
	GracePeriod time.Duration
}

// BlobGCResult reports the outcome of a GC run.
type BlobGCResult struct {
	ScannedCount   int
	CandidateCount int
	DeletedCount   int
	FailedCount    int
	ReclaimedBytes int64
	StagingSwept   int
	DryRun         bool
}

// GCBlobs deletes blobs no record references that are older than the grace
// period, then clears stale staging leftovers when the store supports it.
func (s *FileService) GCBlobs(ctx context.Context, opts GCOptions) (BlobGCResult, error) {
	result := BlobGCResult{DryRun: opts.DryRun}
	if err := s.ensureConfigured(); err != nil {
		return result, err
	}
	if opts.GracePeriod < 0 {
		return result, badRequestCode(fmt.Errorf("grace period must be >= 0"), ErrCodeInvalidArgument)
	}
	if opts.GracePeriod == 0 {
		opts.GracePeriod = DefaultGCGracePeriod
	}
	cutoff := s.now().Add(-opts.GracePeriod)

	var candidates []blobstore.BlobInfo
	err := s.blobs.Walk(ctx, func(info blobstore.BlobInfo) error {
		result.ScannedCount++
		if info.ModTime.After(cutoff) {
			return nil
		}
		referenced, err := s.catalog.BlobKeyReferenced(ctx, info.Key)
		if err != nil {
			return storeUnavailable(err)
		}
		if !referenced {
			candidates = append(candidates, info)
		}
		return nil
	})
	if err != nil {
		var apiErr apiError
		if errors.As(err, &apiErr) {
			return result, err
		}
		return result, blobUnavailable(err)
	}

	result.CandidateCount = len(candidates)
	if opts.DryRun {
		for _, info := range candidates {
			result.ReclaimedBytes += info.SizeBytes
		}
		return result, nil
	}

	for _, info := range candidates {
		// re-check: a record may have claimed the key since the walk
		referenced, err := s.catalog.BlobKeyReferenced(ctx, info.Key)
		if err != nil {
			result.FailedCount++
			continue
		}
		if referenced {
			continue
		}
		if err := s.blobs.Delete(ctx, info.Key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Warn("gc delete blob", "blob_key", info.Key, "error", err)
			result.FailedCount++
			continue
		}
		result.DeletedCount++
		result.ReclaimedBytes += info.SizeBytes
	}

	if sweeper, ok := s.blobs.(blobstore.StagingSweeper); ok {
		swept, err := sweeper.SweepStaging(ctx, cutoff)
		if err != nil {
			s.logger.Warn("gc sweep staging", "error", err)
		}
		result.StagingSwept = swept
	}

	s.metrics.ObserveGC(result.DeletedCount, result.ReclaimedBytes)
	s.logger.Info("blob gc complete",
		"scanned", result.ScannedCount,
		"deleted", result.DeletedCount,
		"failed", result.FailedCount,
		"reclaimed_bytes", result.ReclaimedBytes,
		"staging_swept", result.StagingSwept,
	)
	return result, nil
}

// RunPeriodicGC runs GCBlobs every interval until ctx is done.
func (s *FileService) RunPeriodicGC(ctx context.Context, interval, gracePeriod time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.GCBlobs(ctx, GCOptions{GracePeriod: gracePeriod}); err != nil {
				s.logger.Error("periodic blob gc", "error", err)
			}
		}
	}
}
