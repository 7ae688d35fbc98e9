package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"fstore/internal/blobstore"
	"fstore/internal/metrics"
	"fstore/internal/models"
	"fstore/internal/store"
)

const (
	defaultListPageSize   = 10
	defaultListMaxPerPage = 1000
	sniffLength           = 3072
	fallbackContentType   = "application/octet-stream"
	downloadPathPrefix    = "/v1/files/download/"
)

// FileServiceConfig holds the tunables of a FileService.
type FileServiceConfig struct {
	// LinkBaseURL prefixes download links. Empty yields relative links.
	LinkBaseURL     string
	DefaultPageSize int
	MaxPageSize     int
}

// FileService coordinates the catalog and blob store. It holds no locks:
// uniqueness is enforced by Catalog.CreateFile and UpdateFile.
type FileService struct {
	catalog         store.Catalog
	blobs           blobstore.BlobStore
	metrics         *metrics.Metrics
	logger          *slog.Logger
	linkBaseURL     string
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
}

// NewFileService creates a file service backed by catalog and blobs.
func NewFileService(catalog store.Catalog, blobs blobstore.BlobStore, cfg FileServiceConfig, m *metrics.Metrics, logger *slog.Logger) *FileService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultListPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = defaultListMaxPerPage
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return &FileService{
		catalog:         catalog,
		blobs:           blobs,
		metrics:         m,
		logger:          logger,
		linkBaseURL:     strings.TrimRight(strings.TrimSpace(cfg.LinkBaseURL), "/"),
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// UploadInput describes one upload. Visibility defaults to PRIVATE.
type UploadInput struct {
	OwnerID     string
	Filename    string
	ContentType string
	Visibility  string
	Tags        []string
	Content     io.Reader
}

// Upload stores the content and creates its record. The stream is hashed
// while it is staged, so nothing becomes durable before the duplicate
// checks pass. A catalog conflict after commit leaves the blob for GC.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (models.FileView, error) {
	view, size, err := s.upload(ctx, in)
	s.metrics.ObserveUpload(uploadResult(err), size)
	return view, err
}

func (s *FileService) upload(ctx context.Context, in UploadInput) (models.FileView, int64, error) {
	var zero models.FileView
	if err := s.ensureConfigured(); err != nil {
		return zero, 0, err
	}
	if in.Content == nil {
		return zero, 0, badRequestCode(fmt.Errorf("file content is required"), ErrCodeMissingRequired)
	}
	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		return zero, 0, badRequestCode(fmt.Errorf("owner id is required"), ErrCodeMissingRequired)
	}
	tags, err := models.NormalizeTags(in.Tags)
	if err != nil {
		return zero, 0, badRequestCode(err, ErrCodeInvalidTags)
	}
	visibility := models.VisibilityPrivate
	if strings.TrimSpace(in.Visibility) != "" {
		visibility, err = models.ParseVisibility(in.Visibility)
		if err != nil {
			return zero, 0, badRequestCode(err, ErrCodeInvalidVisibility)
		}
	}
	filename, err := models.NormalizeFilename(in.Filename)
	if err != nil {
		return zero, 0, badRequestCode(err, ErrCodeInvalidFilename)
	}

	buffered := bufio.NewReaderSize(in.Content, sniffLength)
	peek, err := buffered.Peek(sniffLength)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return zero, 0, classifyStageError(err)
	}
	detected := mimetype.Detect(peek).String()

	staged, err := s.blobs.Stage(ctx, buffered)
	if err != nil {
		return zero, 0, classifyStageError(err)
	}
	abort := func() {
		if err := staged.Abort(ctx); err != nil {
			s.logger.Warn("abort staged blob", "owner", ownerID, "error", err)
		}
	}

	existing, err := s.catalog.GetFileByOwnerAndHash(ctx, ownerID, staged.SHA256)
	if err != nil {
		abort()
		return zero, 0, storeUnavailable(err)
	}
	if existing != nil {
		abort()
		return zero, 0, duplicateContent(fmt.Errorf("identical content already stored as %q", existing.Filename))
	}
	existing, err = s.catalog.GetFileByOwnerAndFilename(ctx, ownerID, filename)
	if err != nil {
		abort()
		return zero, 0, storeUnavailable(err)
	}
	if existing != nil {
		abort()
		return zero, 0, duplicateFilename(fmt.Errorf("filename %q already exists", filename))
	}

	id, err := store.GenerateFileID(ctx, s.catalog.FileIDExists)
	if err != nil {
		abort()
		return zero, 0, storeUnavailable(err)
	}

	blobKey, err := staged.Commit(ctx)
	if err != nil {
		return zero, 0, blobUnavailable(err)
	}

	record := &models.FileRecord{
		ID:           id,
		Filename:     filename,
		OwnerID:      ownerID,
		Visibility:   visibility,
		Tags:         tags,
		ContentType:  strings.TrimSpace(in.ContentType),
		DetectedType: detected,
		SizeBytes:    staged.SizeBytes,
		ContentHash:  staged.SHA256,
		UploadedAt:   s.now(),
		PublicToken:  uuid.NewString(),
		BlobKey:      blobKey,
	}
	if err := s.catalog.CreateFile(ctx, record); err != nil {
		s.logger.Warn("orphaned blob after failed create", "blob_key", blobKey, "owner", ownerID, "error", err)
		var conflictErr *store.ConflictError
		if errors.As(err, &conflictErr) {
			return zero, 0, conflict(fmt.Errorf("file was created concurrently (%s)", conflictErr.Constraint))
		}
		return zero, 0, storeUnavailable(err)
	}

	s.logger.Debug("file uploaded", "id", record.ID, "owner", ownerID, "size", record.SizeBytes, "detected_type", detected)
	return s.view(*record), record.SizeBytes, nil
}

func classifyStageError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("upload exceeds %d bytes", maxBytesErr.Limit), ErrCodeRequestTooLarge)
	}
	return blobUnavailable(err)
}

func uploadResult(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	var apiErr apiError
	if !errors.As(err, &apiErr) {
		return metrics.ResultError
	}
	switch apiErr.errCode {
	case ErrCodeDuplicateContent, ErrCodeDuplicateFilename:
		return metrics.ResultDuplicate
	case ErrCodeConflict:
		return metrics.ResultConflict
	}
	if apiErr.status == http.StatusBadRequest {
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}

// ListInput selects one page of records. OwnerID scopes the listing to the
// caller's own files; without it only PUBLIC records are reachable.
type ListInput struct {
	OwnerID    string
	Visibility string
	Tag        string
	SortBy     string
	Direction  string
	Page       int
	Size       int
}

// ListResult is one page of decorated records.
type ListResult struct {
	Files []models.FileView
	Total int
	Page  int
	Size  int
}

// List picks the narrowest supported query for the given filters:
// owner+tag, owner, visibility+tag, visibility, and PUBLIC otherwise.
func (s *FileService) List(ctx context.Context, in ListInput) (ListResult, error) {
	if err := s.ensureConfigured(); err != nil {
		return ListResult{}, err
	}

	page, err := s.pageRequest(in)
	if err != nil {
		return ListResult{}, err
	}

	var visibility models.Visibility
	if strings.TrimSpace(in.Visibility) != "" {
		visibility, err = models.ParseVisibility(in.Visibility)
		if err != nil {
			return ListResult{}, badRequestCode(err, ErrCodeInvalidVisibility)
		}
	}

	ownerID := strings.TrimSpace(in.OwnerID)
	tag := strings.TrimSpace(in.Tag)

	var filter store.FileFilter
	switch {
	case ownerID != "" && tag != "":
		filter = store.ByOwnerAndTag(ownerID, tag)
	case ownerID != "":
		filter = store.ByOwner(ownerID)
	case visibility == models.VisibilityPrivate:
		return ListResult{}, forbidden(fmt.Errorf("private files can only be listed by their owner"))
	case visibility != "" && tag != "":
		filter = store.ByVisibilityAndTag(visibility, tag)
	case visibility != "":
		filter = store.ByVisibility(visibility)
	default:
		filter = store.ByVisibilityAndTag(models.VisibilityPublic, tag)
	}

	result, err := s.catalog.ListFiles(ctx, filter, page)
	if err != nil {
		return ListResult{}, storeUnavailable(err)
	}
	return ListResult{
		Files: s.views(result.Files),
		Total: result.Total,
		Page:  page.Page,
		Size:  page.Size,
	}, nil
}

func (s *FileService) pageRequest(in ListInput) (store.PageRequest, error) {
	if in.Page < 0 {
		return store.PageRequest{}, badRequestCode(fmt.Errorf("page must be >= 0"), ErrCodeInvalidQuery)
	}
	size := in.Size
	switch {
	case size == 0:
		size = s.defaultPageSize
	case size < 0:
		return store.PageRequest{}, badRequestCode(fmt.Errorf("size must be > 0"), ErrCodeInvalidQuery)
	case size > s.maxPageSize:
		return store.PageRequest{}, badRequestCode(fmt.Errorf("size must be <= %d", s.maxPageSize), ErrCodeInvalidQuery)
	}
	if in.Page > math.MaxInt/size {
		return store.PageRequest{}, badRequestCode(fmt.Errorf("page %d is out of range", in.Page), ErrCodeInvalidQuery)
	}

	field, err := models.ParseSortField(in.SortBy)
	if err != nil {
		return store.PageRequest{}, badRequestCode(err, ErrCodeInvalidSort)
	}
	direction, err := models.ParseSortDirection(in.Direction)
	if err != nil {
		return store.PageRequest{}, badRequestCode(err, ErrCodeInvalidSort)
	}
	return store.PageRequest{
		Page: in.Page,
		Size: size,
		Sort: models.ListSort{Field: field, Direction: direction},
	}, nil
}

// ListPublic returns every PUBLIC record, unpaginated.
func (s *FileService) ListPublic(ctx context.Context) ([]models.FileView, error) {
	if err := s.ensureConfigured(); err != nil {
		return nil, err
	}
	result, err := s.catalog.ListFiles(ctx, store.ByVisibility(models.VisibilityPublic), store.PageRequest{})
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return s.views(result.Files), nil
}

// Delete removes the record and then its blob. A blob delete failure is
// logged and the orphan is left for GC.
func (s *FileService) Delete(ctx context.Context, id, requesterID string) error {
	record, err := s.mutableRecord(ctx, id, requesterID)
	if err != nil {
		return err
	}

	if err := s.catalog.DeleteFile(ctx, record.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundCode(fmt.Errorf("file not found"), ErrCodeFileNotFound)
		}
		return storeUnavailable(err)
	}
	if err := s.blobs.Delete(ctx, record.BlobKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		s.logger.Warn("orphaned blob after delete", "blob_key", record.BlobKey, "id", record.ID, "error", err)
	}
	s.logger.Debug("file deleted", "id", record.ID, "owner", record.OwnerID)
	return nil
}

// Rename changes a record's filename within its owner's namespace.
func (s *FileService) Rename(ctx context.Context, id, requesterID, newFilename string) (models.FileView, error) {
	filename, err := models.NormalizeFilename(newFilename)
	if err != nil {
		return models.FileView{}, badRequestCode(err, ErrCodeInvalidFilename)
	}
	record, err := s.mutableRecord(ctx, id, requesterID)
	if err != nil {
		return models.FileView{}, err
	}
	if record.Filename == filename {
		return s.view(*record), nil
	}

	existing, err := s.catalog.GetFileByOwnerAndFilename(ctx, record.OwnerID, filename)
	if err != nil {
		return models.FileView{}, storeUnavailable(err)
	}
	if existing != nil && existing.ID != record.ID {
		return models.FileView{}, duplicateFilename(fmt.Errorf("filename %q already exists", filename))
	}

	updated := *record
	updated.Filename = filename
	if err := s.catalog.UpdateFile(ctx, &updated); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return models.FileView{}, conflict(fmt.Errorf("filename %q was taken concurrently", filename))
		case errors.Is(err, store.ErrNotFound):
			return models.FileView{}, notFoundCode(fmt.Errorf("file not found"), ErrCodeFileNotFound)
		default:
			return models.FileView{}, storeUnavailable(err)
		}
	}
	return s.view(updated), nil
}

func (s *FileService) mutableRecord(ctx context.Context, id, requesterID string) (*models.FileRecord, error) {
	if err := s.ensureConfigured(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, badRequestCode(fmt.Errorf("file id is required"), ErrCodeMissingRequired)
	}
	if !store.IsFileID(id) {
		return nil, notFoundCode(fmt.Errorf("file not found"), ErrCodeFileNotFound)
	}
	record, err := s.catalog.GetFile(ctx, id)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if record == nil {
		return nil, notFoundCode(fmt.Errorf("file not found"), ErrCodeFileNotFound)
	}
	if !canMutate(record, strings.TrimSpace(requesterID)) {
		return nil, forbidden(fmt.Errorf("only the owner can modify this file"))
	}
	return record, nil
}

// DownloadContent is an open content stream. Callers must close Reader.
type DownloadContent struct {
	Reader      io.ReadCloser
	Filename    string
	ContentType string
	SizeBytes   int64
}

// ResolveDownload maps a public token to the file content. A missing token
// and a missing blob are reported as distinct not-found errors.
func (s *FileService) ResolveDownload(ctx context.Context, token, requesterID string) (*DownloadContent, error) {
	content, err := s.resolveDownload(ctx, token, requesterID)
	s.metrics.ObserveDownload(downloadResult(err))
	return content, err
}

func (s *FileService) resolveDownload(ctx context.Context, token, requesterID string) (*DownloadContent, error) {
	if err := s.ensureConfigured(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, notFoundCode(fmt.Errorf("invalid or expired token"), ErrCodeTokenNotFound)
	}

	record, err := s.catalog.GetFileByToken(ctx, token)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if record == nil {
		return nil, notFoundCode(fmt.Errorf("invalid or expired token"), ErrCodeTokenNotFound)
	}
	if !canDownload(record, strings.TrimSpace(requesterID)) {
		return nil, forbidden(fmt.Errorf("access denied"))
	}

	size, err := s.blobs.Size(ctx, record.BlobKey)
	if err != nil {
		return nil, s.blobReadError(record, err)
	}
	rc, err := s.blobs.Open(ctx, record.BlobKey)
	if err != nil {
		return nil, s.blobReadError(record, err)
	}

	contentType := strings.TrimSpace(record.DetectedType)
	if contentType == "" {
		contentType = fallbackContentType
	}
	return &DownloadContent{
		Reader:      rc,
		Filename:    record.Filename,
		ContentType: contentType,
		SizeBytes:   size,
	}, nil
}

func (s *FileService) blobReadError(record *models.FileRecord, err error) error {
	if errors.Is(err, blobstore.ErrNotFound) {
		s.logger.Error("record references missing blob", "id", record.ID, "blob_key", record.BlobKey)
		return notFoundCode(fmt.Errorf("content not found"), ErrCodeContentNotFound)
	}
	return blobUnavailable(err)
}

func downloadResult(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	switch httpStatusFromError(err) {
	case http.StatusForbidden:
		return metrics.ResultForbidden
	case http.StatusNotFound:
		return metrics.ResultNotFound
	default:
		return metrics.ResultError
	}
}

// DownloadLink derives the link for a token. It is never persisted.
func (s *FileService) DownloadLink(token string) string {
	return s.linkBaseURL + downloadPathPrefix + token
}

func (s *FileService) view(record models.FileRecord) models.FileView {
	if record.Tags == nil {
		record.Tags = []string{}
	}
	return models.FileView{FileRecord: record, DownloadLink: s.DownloadLink(record.PublicToken)}
}

func (s *FileService) views(records []models.FileRecord) []models.FileView {
	out := make([]models.FileView, 0, len(records))
	for _, record := range records {
		out = append(out, s.view(record))
	}
	return out
}

func (s *FileService) ensureConfigured() error {
	if s == nil || s.catalog == nil || s.blobs == nil {
		return internalError(fmt.Errorf("file service is not configured"))
	}
	return nil
}
