package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned when a blob key has no stored content.
var ErrNotFound = errors.New("blob not found")

// BlobPutResult describes one persisted blob payload.
type BlobPutResult struct {
	SHA256    string
	SizeBytes int64
	BlobKey   string
}

// BlobInfo describes a stored blob seen during a walk.
type BlobInfo struct {
	Key       string
	SizeBytes int64
	ModTime   time.Time
}

// BlobStore is the byte-storage abstraction used by FileService.
//
// Writes are two-phase: Stage consumes the stream while hashing it, and the
// returned Staged blob is either committed under a fresh key or aborted.
// Nothing is visible to Open/Exists/Walk until Commit succeeds.
type BlobStore interface {
	Stage(ctx context.Context, r io.Reader) (*Staged, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Walk(ctx context.Context, fn func(BlobInfo) error) error
}

// StagingSweeper is implemented by stores that can leave staging leftovers
// behind after a crash.
type StagingSweeper interface {
	SweepStaging(ctx context.Context, cutoff time.Time) (int, error)
}

// Staged is a fully consumed, hashed stream waiting for Commit or Abort.
type Staged struct {
	SHA256    string
	SizeBytes int64

	commit func(ctx context.Context) (string, error)
	abort  func(ctx context.Context) error
	done   bool
}

func newStaged(digest string, size int64, commit func(context.Context) (string, error), abort func(context.Context) error) *Staged {
	return &Staged{SHA256: digest, SizeBytes: size, commit: commit, abort: abort}
}

// Commit makes the staged bytes durable and returns the blob key.
func (s *Staged) Commit(ctx context.Context) (string, error) {
	if s == nil || s.done {
		return "", fmt.Errorf("staged blob already finalized")
	}
	s.done = true
	return s.commit(ctx)
}

// Abort discards the staged bytes. Calling it after Commit is a no-op.
func (s *Staged) Abort(ctx context.Context) error {
	if s == nil || s.done {
		return nil
	}
	s.done = true
	return s.abort(ctx)
}

// Put stages and commits r in one step.
func Put(ctx context.Context, store BlobStore, r io.Reader) (BlobPutResult, error) {
	staged, err := store.Stage(ctx, r)
	if err != nil {
		return BlobPutResult{}, err
	}
	key, err := staged.Commit(ctx)
	if err != nil {
		return BlobPutResult{}, err
	}
	return BlobPutResult{SHA256: staged.SHA256, SizeBytes: staged.SizeBytes, BlobKey: key}, nil
}
