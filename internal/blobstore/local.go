package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	localObjectsDir = "blobs"
	localTmpDir     = "tmp"
)

// LocalStore keeps blob bytes in a sharded tree on the local filesystem.
// Each committed blob gets its own key, so two records never share bytes.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local blob store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{abs, filepath.Join(abs, localObjectsDir), filepath.Join(abs, localTmpDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute store directory.
func (l *LocalStore) Root() string { return l.root }

// Stage streams r into a temp file while computing its SHA-256.
func (l *LocalStore) Stage(ctx context.Context, r io.Reader) (*Staged, error) {
	if l == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Join(l.root, localTmpDir), "stage-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		cleanup()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, err
	}

	commit := func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
		key := newLocalKey()
		dst := filepath.Join(l.root, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
		if err := os.Rename(tmpPath, dst); err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
		return key, nil
	}
	abort := func(context.Context) error {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return newStaged(hex.EncodeToString(h.Sum(nil)), n, commit, abort), nil
}

// Open returns a reader for blob key content.
func (l *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := l.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", key, ErrNotFound)
	}
	return f, err
}

// Delete removes a blob object. Missing files are ignored.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := l.resolve(ctx, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Size reports the stored byte length of key.
func (l *LocalStore) Size(ctx context.Context, key string) (int64, error) {
	path, err := l.resolve(ctx, key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("blob %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Exists reports whether key has committed content.
func (l *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := l.Size(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Walk visits every committed blob. Staging files are not reported.
func (l *LocalStore) Walk(ctx context.Context, fn func(BlobInfo) error) error {
	if l == nil {
		return fmt.Errorf("blob store is not configured")
	}
	base := filepath.Join(l.root, localObjectsDir)
	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		return fn(BlobInfo{Key: filepath.ToSlash(rel), SizeBytes: info.Size(), ModTime: info.ModTime()})
	})
}

// SweepStaging removes staging files last written before cutoff.
func (l *LocalStore) SweepStaging(ctx context.Context, cutoff time.Time) (int, error) {
	if l == nil {
		return 0, fmt.Errorf("blob store is not configured")
	}
	entries, err := os.ReadDir(filepath.Join(l.root, localTmpDir))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(l.root, localTmpDir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func newLocalKey() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s/%s/%s/%s", localObjectsDir, id[0:2], id[2:4], id)
}

func (l *LocalStore) resolve(ctx context.Context, key string) (string, error) {
	if l == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.pathFromKey(key)
}

func (l *LocalStore) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("blob key must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key")
	}
	if !strings.HasPrefix(clean, localObjectsDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key")
	}
	return filepath.Join(l.root, clean), nil
}
