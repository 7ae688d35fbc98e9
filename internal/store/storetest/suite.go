// Package storetest is a conformance suite for store.Catalog
// implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fstore/internal/models"
	"fstore/internal/store"
)

// Run executes every catalog contract test. newCatalog must return a fresh,
// empty catalog; the suite closes it.
func Run(t *testing.T, newCatalog func(t *testing.T) store.Catalog) {
	open := func(t *testing.T) store.Catalog {
		t.Helper()
		c := newCatalog(t)
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	t.Run("CreateAndLookup", func(t *testing.T) { testCreateAndLookup(t, open(t)) })
	t.Run("Uniqueness", func(t *testing.T) { testUniqueness(t, open(t)) })
	t.Run("ConcurrentCreateSameHash", func(t *testing.T) { testConcurrentCreate(t, open(t), sameHash) })
	t.Run("ConcurrentCreateSameFilename", func(t *testing.T) { testConcurrentCreate(t, open(t), sameFilename) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, open(t)) })
	t.Run("ListPaginationAndSort", func(t *testing.T) { testListPaginationAndSort(t, open(t)) })
	t.Run("Rename", func(t *testing.T) { testRename(t, open(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, open(t)) })
}

var seq struct {
	sync.Mutex
	n int
}

// Record builds a valid record; the caller overrides what it cares about.
func Record(owner, filename, hash string) *models.FileRecord {
	seq.Lock()
	seq.n++
	n := seq.n
	seq.Unlock()
	return &models.FileRecord{
		ID:           fmt.Sprintf("fl-%010d", n),
		OwnerID:      owner,
		Filename:     filename,
		Visibility:   models.VisibilityPrivate,
		Tags:         []string{},
		ContentType:  "application/octet-stream",
		DetectedType: "text/plain; charset=utf-8",
		SizeBytes:    int64(len(filename)),
		ContentHash:  hash,
		BlobKey:      fmt.Sprintf("blobs/%010d", n),
		PublicToken:  fmt.Sprintf("token-%010d", n),
		UploadedAt:   time.Date(2026, 1, 1, 0, 0, n%60, 0, time.UTC),
	}
}

func conflictConstraint(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, store.ErrConflict), "expected conflict, got %v", err)
	var ce *store.ConflictError
	require.True(t, errors.As(err, &ce))
	return ce.Constraint
}

func testCreateAndLookup(t *testing.T, c store.Catalog) {
	ctx := context.Background()
	rec := Record("alice", "report.pdf", "h1")
	rec.Visibility = models.VisibilityPublic
	rec.Tags = []string{"finance", "Q3"}
	require.NoError(t, c.CreateFile(ctx, rec))

	got, err := c.GetFile(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Filename, got.Filename)
	assert.Equal(t, rec.BlobKey, got.BlobKey)
	assert.Equal(t, []string{"finance", "Q3"}, got.Tags)
	assert.Equal(t, models.VisibilityPublic, got.Visibility)
	assert.True(t, rec.UploadedAt.Equal(got.UploadedAt))

	byHash, err := c.GetFileByOwnerAndHash(ctx, "alice", "h1")
	require.NoError(t, err)
	require.NotNil(t, byHash)
	assert.Equal(t, rec.ID, byHash.ID)

	byName, err := c.GetFileByOwnerAndFilename(ctx, "alice", "report.pdf")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, rec.ID, byName.ID)

	byToken, err := c.GetFileByToken(ctx, rec.PublicToken)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, rec.ID, byToken.ID)

	missing, err := c.GetFileByOwnerAndHash(ctx, "bob", "h1")
	require.NoError(t, err)
	assert.Nil(t, missing)
	missing, err = c.GetFileByToken(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := c.FileIDExists(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	referenced, err := c.BlobKeyReferenced(ctx, rec.BlobKey)
	require.NoError(t, err)
	assert.True(t, referenced)
	referenced, err = c.BlobKeyReferenced(ctx, "blobs/none")
	require.NoError(t, err)
	assert.False(t, referenced)

	n, err := c.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testUniqueness(t *testing.T, c store.Catalog) {
	ctx := context.Background()
	require.NoError(t, c.CreateFile(ctx, Record("alice", "a.txt", "h1")))

	err := c.CreateFile(ctx, Record("alice", "b.txt", "h1"))
	assert.Equal(t, store.ConstraintOwnerHash, conflictConstraint(t, err))

	err = c.CreateFile(ctx, Record("alice", "a.txt", "h2"))
	assert.Equal(t, store.ConstraintOwnerFilename, conflictConstraint(t, err))

	dupToken := Record("carol", "c.txt", "h3")
	first := Record("dave", "d.txt", "h4")
	dupToken.PublicToken = first.PublicToken
	require.NoError(t, c.CreateFile(ctx, first))
	err = c.CreateFile(ctx, dupToken)
	assert.Equal(t, store.ConstraintPublicToken, conflictConstraint(t, err))

	// Other owners may reuse both content and names.
	require.NoError(t, c.CreateFile(ctx, Record("bob", "a.txt", "h1")))

	n, err := c.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

type clash int

const (
	sameHash clash = iota
	sameFilename
)

func testConcurrentCreate(t *testing.T, c store.Catalog, kind clash) {
	ctx := context.Background()
	const workers = 16

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	var failures []error

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		rec := Record("alice", fmt.Sprintf("file-%d.bin", i), fmt.Sprintf("hash-%d", i))
		if kind == sameHash {
			rec.ContentHash = "shared-hash"
		} else {
			rec.Filename = "shared.bin"
		}
		wg.Add(1)
		go func(rec *models.FileRecord) {
			defer wg.Done()
			<-start
			err := c.CreateFile(ctx, rec)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(rec)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, failures, workers-1)
	for _, err := range failures {
		assert.ErrorIs(t, err, store.ErrConflict)
	}

	page, err := c.ListFiles(ctx, store.ByOwner("alice"), store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func seedListing(t *testing.T, c store.Catalog) {
	t.Helper()
	ctx := context.Background()
	recs := []struct {
		owner, name string
		vis         models.Visibility
		tags        []string
	}{
		{"alice", "alpha.txt", models.VisibilityPublic, []string{"Finance", "2026"}},
		{"alice", "beta.txt", models.VisibilityPrivate, []string{"finance-private"}},
		{"alice", "gamma.txt", models.VisibilityPublic, nil},
		{"bob", "delta.txt", models.VisibilityPublic, []string{"travel"}},
		{"bob", "epsilon.txt", models.VisibilityPrivate, []string{"REFINANCE"}},
	}
	for i, r := range recs {
		rec := Record(r.owner, r.name, fmt.Sprintf("seed-%d", i))
		rec.Visibility = r.vis
		if r.tags != nil {
			rec.Tags = r.tags
		}
		require.NoError(t, c.CreateFile(ctx, rec))
	}
}

func names(files []models.FileRecord) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Filename
	}
	return out
}

func testListFilters(t *testing.T, c store.Catalog) {
	ctx := context.Background()
	seedListing(t, c)

	page, err := c.ListFiles(ctx, store.ByOwner("alice"), store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha.txt", "beta.txt", "gamma.txt"}, names(page.Files))
	assert.Equal(t, 3, page.Total)

	page, err = c.ListFiles(ctx, store.ByOwnerAndTag("alice", "FINANCE"), store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha.txt", "beta.txt"}, names(page.Files))

	page, err = c.ListFiles(ctx, store.ByVisibility(models.VisibilityPublic), store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha.txt", "delta.txt", "gamma.txt"}, names(page.Files))

	page, err = c.ListFiles(ctx, store.ByVisibilityAndTag(models.VisibilityPrivate, "finance"), store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta.txt", "epsilon.txt"}, names(page.Files))

	page, err = c.ListFiles(ctx, store.ByVisibilityAndTag(models.VisibilityPublic, "nomatch"), store.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Files)
	assert.Equal(t, 0, page.Total)
}

func testListPaginationAndSort(t *testing.T, c store.Catalog) {
	ctx := context.Background()
	seedListing(t, c)

	page, err := c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, []string{"delta.txt", "epsilon.txt"}, names(page.Files))

	page, err = c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma.txt"}, names(page.Files))

	page, err = c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{Page: 9, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Empty(t, page.Files)

	page, err = c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{Page: math.MaxInt / 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Empty(t, page.Files)

	_, err = c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{Page: 1 << 62, Size: 10})
	require.Error(t, err, "page*size overflow must be rejected")

	page, err = c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{
		Sort: models.ListSort{Field: models.SortByFilename, Direction: models.SortDesc},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma.txt", "epsilon.txt", "delta.txt", "beta.txt", "alpha.txt"}, names(page.Files))

	page, err = c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{
		Sort: models.ListSort{Field: models.SortBySize, Direction: models.SortAsc},
	})
	require.NoError(t, err)
	for i := 1; i < len(page.Files); i++ {
		assert.LessOrEqual(t, page.Files[i-1].SizeBytes, page.Files[i].SizeBytes)
	}

	_, err = c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{Sort: models.ListSort{Field: "owner_id"}})
	assert.Error(t, err)
	_, err = c.ListFiles(ctx, store.FileFilter{}, store.PageRequest{Page: -1, Size: 1})
	assert.Error(t, err)
}

func testRename(t *testing.T, c store.Catalog) {
	ctx := context.Background()
	a := Record("alice", "a.txt", "h1")
	b := Record("alice", "b.txt", "h2")
	require.NoError(t, c.CreateFile(ctx, a))
	require.NoError(t, c.CreateFile(ctx, b))

	clash := *a
	clash.Filename = "b.txt"
	assert.Equal(t, store.ConstraintOwnerFilename, conflictConstraint(t, c.UpdateFile(ctx, &clash)))

	renamed := *a
	renamed.Filename = "c.txt"
	require.NoError(t, c.UpdateFile(ctx, &renamed))

	got, err := c.GetFileByOwnerAndFilename(ctx, "alice", "c.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	old, err := c.GetFileByOwnerAndFilename(ctx, "alice", "a.txt")
	require.NoError(t, err)
	assert.Nil(t, old)

	// The freed name is usable again.
	require.NoError(t, c.CreateFile(ctx, Record("alice", "a.txt", "h3")))

	ghost := Record("alice", "ghost.txt", "h9")
	assert.ErrorIs(t, c.UpdateFile(ctx, ghost), store.ErrNotFound)
}

func testDelete(t *testing.T, c store.Catalog) {
	ctx := context.Background()
	rec := Record("alice", "a.txt", "h1")
	rec.Tags = []string{"x"}
	require.NoError(t, c.CreateFile(ctx, rec))

	require.NoError(t, c.DeleteFile(ctx, rec.ID))
	got, err := c.GetFile(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = c.GetFileByToken(ctx, rec.PublicToken)
	require.NoError(t, err)
	assert.Nil(t, got)
	referenced, err := c.BlobKeyReferenced(ctx, rec.BlobKey)
	require.NoError(t, err)
	assert.False(t, referenced)

	assert.ErrorIs(t, c.DeleteFile(ctx, rec.ID), store.ErrNotFound)

	// Content and name are free again for the same owner.
	require.NoError(t, c.CreateFile(ctx, Record("alice", "a.txt", "h1")))
}
