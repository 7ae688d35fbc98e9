package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"fstore/internal/models"
)

// ErrConflict matches every uniqueness violation reported by a Catalog.
var ErrConflict = errors.New("unique constraint violated")

// ErrNotFound is returned by writes that target a missing record.
// Lookups return nil, nil instead.
var ErrNotFound = errors.New("record not found")

// Constraint names reported in ConflictError.
const (
	ConstraintID            = "id"
	ConstraintOwnerHash     = "owner_content_hash"
	ConstraintOwnerFilename = "owner_filename"
	ConstraintPublicToken   = "public_token"
	ConstraintBlobKey       = "blob_key"
	ConstraintConcurrent    = "concurrent_write"
)

// ConflictError is a uniqueness violation detected at write time.
type ConflictError struct {
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrConflict, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrConflict, e.Constraint)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

// FileFilter selects records for listing. Empty fields do not filter.
// Tag is a case-insensitive substring matched against any tag.
type FileFilter struct {
	OwnerID    string
	Visibility models.Visibility
	Tag        string
}

// PageRequest is a zero-based page. Size 0 returns every match.
type PageRequest struct {
	Page int
	Size int
	Sort models.ListSort
}

// FilePage is one page of records plus the total match count.
type FilePage struct {
	Files []models.FileRecord
	Total int
}

// Catalog is the metadata store for file records. CreateFile and UpdateFile
// enforce per-owner content hash, per-owner filename and global token
// uniqueness atomically and report violations as *ConflictError.
type Catalog interface {
	FileIDExists(ctx context.Context, id string) (bool, error)
	CreateFile(ctx context.Context, file *models.FileRecord) error
	GetFile(ctx context.Context, id string) (*models.FileRecord, error)
	GetFileByOwnerAndHash(ctx context.Context, ownerID, contentHash string) (*models.FileRecord, error)
	GetFileByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*models.FileRecord, error)
	GetFileByToken(ctx context.Context, token string) (*models.FileRecord, error)
	ListFiles(ctx context.Context, filter FileFilter, page PageRequest) (FilePage, error)
	UpdateFile(ctx context.Context, file *models.FileRecord) error
	DeleteFile(ctx context.Context, id string) error
	BlobKeyReferenced(ctx context.Context, key string) (bool, error)
	CountFiles(ctx context.Context) (int, error)
	Close() error
}

func ByOwner(ownerID string) FileFilter {
	return FileFilter{OwnerID: ownerID}
}

func ByOwnerAndTag(ownerID, tag string) FileFilter {
	return FileFilter{OwnerID: ownerID, Tag: tag}
}

func ByVisibility(visibility models.Visibility) FileFilter {
	return FileFilter{Visibility: visibility}
}

func ByVisibilityAndTag(visibility models.Visibility, tag string) FileFilter {
	return FileFilter{Visibility: visibility, Tag: tag}
}

// NormalizePage fills sort defaults and rejects negative values.
func NormalizePage(page PageRequest) (PageRequest, error) {
	if page.Page < 0 {
		return page, fmt.Errorf("page must be >= 0")
	}
	if page.Size < 0 {
		return page, fmt.Errorf("page size must be >= 0")
	}
	if page.Size > 0 && page.Page > math.MaxInt/page.Size {
		return page, fmt.Errorf("page %d is out of range for size %d", page.Page, page.Size)
	}
	if page.Sort.Field == "" {
		page.Sort.Field = models.DefaultSortField
	}
	if page.Sort.Direction == "" {
		page.Sort.Direction = models.DefaultSortDirection
	}
	if !page.Sort.Field.Valid() {
		return page, fmt.Errorf("unknown sort field: %s", page.Sort.Field)
	}
	if page.Sort.Direction != models.SortAsc && page.Sort.Direction != models.SortDesc {
		return page, fmt.Errorf("invalid sort direction: %s", page.Sort.Direction)
	}
	return page, nil
}
