package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fstore/internal/models"
)

const fileColumns = "files.id, files.owner_id, files.filename, files.visibility, files.content_type, files.detected_type, files.size_bytes, files.content_hash, files.blob_key, files.public_token, files.uploaded_at"

// dbTimeLayout has fixed-width fractions so stored values sort as text.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z"

// FileIDExists checks whether a file exists by id.
func (s *Store) FileIDExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM files WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateFile inserts one record and its tags in a single transaction.
func (s *Store) CreateFile(ctx context.Context, file *models.FileRecord) (err error) {
	if file == nil {
		return fmt.Errorf("file is required")
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (id, owner_id, filename, visibility, content_type, detected_type, size_bytes, content_hash, blob_key, public_token, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		file.ID,
		file.OwnerID,
		file.Filename,
		string(file.Visibility),
		nullIfEmpty(strings.TrimSpace(file.ContentType)),
		nullIfEmpty(strings.TrimSpace(file.DetectedType)),
		file.SizeBytes,
		file.ContentHash,
		file.BlobKey,
		file.PublicToken,
		dbFormatTime(file.UploadedAt),
	)
	if err != nil {
		return conflictFromSQLite(err)
	}

	if err = insertFileTagsTx(ctx, tx, file.ID, file.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// GetFile returns one record with tags, or nil when absent.
func (s *Store) GetFile(ctx context.Context, id string) (*models.FileRecord, error) {
	return s.getFileWhere(ctx, "files.id = ?", id)
}

func (s *Store) GetFileByOwnerAndHash(ctx context.Context, ownerID, contentHash string) (*models.FileRecord, error) {
	return s.getFileWhere(ctx, "files.owner_id = ? AND files.content_hash = ?", ownerID, contentHash)
}

func (s *Store) GetFileByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*models.FileRecord, error) {
	return s.getFileWhere(ctx, "files.owner_id = ? AND files.filename = ?", ownerID, filename)
}

func (s *Store) GetFileByToken(ctx context.Context, token string) (*models.FileRecord, error) {
	return s.getFileWhere(ctx, "files.public_token = ?", token)
}

func (s *Store) getFileWhere(ctx context.Context, where string, args ...any) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE `+where+` LIMIT 1`, args...)
	file, err := scanFile(row)
	if err != nil || file == nil {
		return file, err
	}
	tags, err := s.listTagsForFiles(ctx, []string{file.ID})
	if err != nil {
		return nil, err
	}
	file.Tags = tagsOrEmpty(tags[file.ID])
	return file, nil
}

// ListFiles returns one sorted page of records matching filter.
func (s *Store) ListFiles(ctx context.Context, filter FileFilter, page PageRequest) (FilePage, error) {
	page, err := NormalizePage(page)
	if err != nil {
		return FilePage{}, err
	}

	countQuery, countArgs := buildCountQuery(filter)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return FilePage{}, err
	}

	query, args := buildListQuery(filter, page)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return FilePage{}, err
	}
	defer rows.Close()

	files := []models.FileRecord{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return FilePage{}, err
		}
		if file != nil {
			files = append(files, *file)
		}
	}
	if err := rows.Err(); err != nil {
		return FilePage{}, err
	}

	ids := make([]string, len(files))
	for i := range files {
		ids[i] = files[i].ID
	}
	tags, err := s.listTagsForFiles(ctx, ids)
	if err != nil {
		return FilePage{}, err
	}
	for i := range files {
		files[i].Tags = tagsOrEmpty(tags[files[i].ID])
	}

	return FilePage{Files: files, Total: total}, nil
}

// UpdateFile persists the mutable fields of file. Only the filename can
// change after creation.
func (s *Store) UpdateFile(ctx context.Context, file *models.FileRecord) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}
	res, err := s.db.ExecContext(ctx, "UPDATE files SET filename = ? WHERE id = ?", file.Filename, file.ID)
	if err != nil {
		return conflictFromSQLite(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", file.ID, ErrNotFound)
	}
	return nil
}

// DeleteFile removes one record; tags cascade.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return nil
}

// BlobKeyReferenced reports whether any record points at key.
func (s *Store) BlobKeyReferenced(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM files WHERE blob_key = ? LIMIT 1", key).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountFiles returns the number of records in the catalog.
func (s *Store) CountFiles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n)
	return n, err
}

func (s *Store) listTagsForFiles(ctx context.Context, ids []string) (map[string][]string, error) {
	result := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT file_id, tag FROM file_tags WHERE file_id IN (%s) ORDER BY file_id, position", placeholders(len(ids))),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		result[id] = append(result[id], tag)
	}
	return result, rows.Err()
}

func insertFileTagsTx(ctx context.Context, tx *sql.Tx, fileID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	values := make([]string, len(tags))
	args := make([]any, 0, len(tags)*4)
	for i, tag := range tags {
		values[i] = "(?, ?, ?, ?)"
		args = append(args, fileID, i, tag, foldTag(tag))
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO file_tags (file_id, position, tag, tag_folded) VALUES "+strings.Join(values, ","), args...)
	return err
}

func scanFile(scanner interface {
	Scan(dest ...any) error
}) (*models.FileRecord, error) {
	file := models.FileRecord{}
	var visibility, uploadedAt string
	var contentType, detectedType sql.NullString

	err := scanner.Scan(
		&file.ID,
		&file.OwnerID,
		&file.Filename,
		&visibility,
		&contentType,
		&detectedType,
		&file.SizeBytes,
		&file.ContentHash,
		&file.BlobKey,
		&file.PublicToken,
		&uploadedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	file.Visibility = models.Visibility(visibility)
	file.ContentType = contentType.String
	file.DetectedType = detectedType.String
	parsed, err := dbParseTime(uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse uploaded_at: %w", err)
	}
	file.UploadedAt = parsed
	return &file, nil
}

// conflictFromSQLite maps a UNIQUE constraint failure to *ConflictError.
func conflictFromSQLite(err error) error {
	if err == nil || !isUniqueConstraint(err) {
		return err
	}
	msg := err.Error()
	constraint := ConstraintID
	switch {
	case strings.Contains(msg, "files.content_hash"):
		constraint = ConstraintOwnerHash
	case strings.Contains(msg, "files.filename"):
		constraint = ConstraintOwnerFilename
	case strings.Contains(msg, "files.public_token"):
		constraint = ConstraintPublicToken
	case strings.Contains(msg, "files.blob_key"):
		constraint = ConstraintBlobKey
	}
	return &ConflictError{Constraint: constraint, Err: err}
}

func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func foldTag(tag string) string {
	return strings.ToLower(tag)
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func dbFormatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func dbParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dbTimeLayout, value)
}
