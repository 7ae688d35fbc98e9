package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"fstore/internal/models"
	"fstore/internal/store"
)

// Store is a store.Catalog over an embedded BadgerDB. Every write runs in one
// serializable transaction; the index keys it reads are what makes two
// racing creates collide.
type Store struct {
	db *badger.DB
}

var _ store.Catalog = (*Store)(nil)

// fileDoc is the persisted form of a record.
type fileDoc struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Filename     string    `json:"filename"`
	Visibility   string    `json:"visibility"`
	Tags         []string  `json:"tags"`
	ContentType  string    `json:"content_type,omitempty"`
	DetectedType string    `json:"detected_type,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	ContentHash  string    `json:"content_hash"`
	BlobKey      string    `json:"blob_key"`
	PublicToken  string    `json:"public_token"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Open opens (or creates) a Badger catalog in dir.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("badger dir is required")
	}
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a catalog that lives only in memory.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	opts = opts.WithLogger(slogLogger{logger: slog.Default().With("component", "badger")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) FileIDExists(ctx context.Context, id string) (bool, error) {
	exists := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyFile(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// CreateFile writes the record and all index keys, failing with
// *store.ConflictError if any index key is already taken.
func (s *Store) CreateFile(ctx context.Context, file *models.FileRecord) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	doc := docFromRecord(file)
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	indexes := []struct {
		key        []byte
		constraint string
	}{
		{keyFile(doc.ID), store.ConstraintID},
		{keyOwnerHash(doc.OwnerID, doc.ContentHash), store.ConstraintOwnerHash},
		{keyOwnerFilename(doc.OwnerID, doc.Filename), store.ConstraintOwnerFilename},
		{keyToken(doc.PublicToken), store.ConstraintPublicToken},
		{keyBlob(doc.BlobKey), store.ConstraintBlobKey},
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, idx := range indexes {
			taken, err := keyTaken(txn, idx.key)
			if err != nil {
				return err
			}
			if taken {
				return &store.ConflictError{Constraint: idx.constraint}
			}
		}
		if err := txn.Set(keyFile(doc.ID), payload); err != nil {
			return err
		}
		for _, idx := range indexes[1:] {
			if err := txn.Set(idx.key, []byte(doc.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	return mapTxnError(err)
}

func (s *Store) GetFile(ctx context.Context, id string) (*models.FileRecord, error) {
	var out *models.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		doc, err := getDoc(txn, id)
		if err != nil || doc == nil {
			return err
		}
		out = doc.record()
		return nil
	})
	return out, err
}

func (s *Store) GetFileByOwnerAndHash(ctx context.Context, ownerID, contentHash string) (*models.FileRecord, error) {
	return s.getByIndex(keyOwnerHash(ownerID, contentHash))
}

func (s *Store) GetFileByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*models.FileRecord, error) {
	return s.getByIndex(keyOwnerFilename(ownerID, filename))
}

func (s *Store) GetFileByToken(ctx context.Context, token string) (*models.FileRecord, error) {
	return s.getByIndex(keyToken(token))
}

func (s *Store) getByIndex(key []byte) (*models.FileRecord, error) {
	var out *models.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getIndex(txn, key)
		if err != nil || id == "" {
			return err
		}
		doc, err := getDoc(txn, id)
		if err != nil || doc == nil {
			return err
		}
		out = doc.record()
		return nil
	})
	return out, err
}

// ListFiles scans candidates, filters, sorts and slices in memory. An owner
// filter narrows the scan to that owner's filename index.
func (s *Store) ListFiles(ctx context.Context, filter store.FileFilter, page store.PageRequest) (store.FilePage, error) {
	page, err := store.NormalizePage(page)
	if err != nil {
		return store.FilePage{}, err
	}

	var matched []*fileDoc
	err = s.db.View(func(txn *badger.Txn) error {
		collect := func(doc *fileDoc) {
			if matchesFilter(doc, filter) {
				matched = append(matched, doc)
			}
		}
		if filter.OwnerID != "" {
			return scanOwner(ctx, txn, filter.OwnerID, collect)
		}
		return scanAll(ctx, txn, collect)
	})
	if err != nil {
		return store.FilePage{}, err
	}

	sortDocs(matched, page.Sort)

	total := len(matched)
	start, end := 0, total
	if page.Size > 0 {
		start = total
		if page.Page < (total+page.Size-1)/page.Size {
			start = page.Page * page.Size
		}
		end = min(start+page.Size, total)
	}

	files := make([]models.FileRecord, 0, end-start)
	for _, doc := range matched[start:end] {
		files = append(files, *doc.record())
	}
	return store.FilePage{Files: files, Total: total}, nil
}

// UpdateFile renames a record, moving its filename index key.
func (s *Store) UpdateFile(ctx context.Context, file *models.FileRecord) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		doc, err := getDoc(txn, file.ID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("file %s: %w", file.ID, store.ErrNotFound)
		}
		if doc.Filename == file.Filename {
			return nil
		}
		newKey := keyOwnerFilename(doc.OwnerID, file.Filename)
		taken, err := keyTaken(txn, newKey)
		if err != nil {
			return err
		}
		if taken {
			return &store.ConflictError{Constraint: store.ConstraintOwnerFilename}
		}
		if err := txn.Delete(keyOwnerFilename(doc.OwnerID, doc.Filename)); err != nil {
			return err
		}
		doc.Filename = file.Filename
		payload, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := txn.Set(keyFile(doc.ID), payload); err != nil {
			return err
		}
		return txn.Set(newKey, []byte(doc.ID))
	})
	return mapTxnError(err)
}

// DeleteFile removes the record and all of its index keys.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		doc, err := getDoc(txn, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("file %s: %w", id, store.ErrNotFound)
		}
		for _, key := range [][]byte{
			keyOwnerHash(doc.OwnerID, doc.ContentHash),
			keyOwnerFilename(doc.OwnerID, doc.Filename),
			keyToken(doc.PublicToken),
			keyBlob(doc.BlobKey),
			keyFile(doc.ID),
		} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	return mapTxnError(err)
}

func (s *Store) BlobKeyReferenced(ctx context.Context, key string) (bool, error) {
	referenced := false
	err := s.db.View(func(txn *badger.Txn) error {
		taken, err := keyTaken(txn, keyBlob(key))
		referenced = taken
		return err
	})
	return referenced, err
}

func (s *Store) CountFiles(ctx context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixFile)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func scanAll(ctx context.Context, txn *badger.Txn, fn func(*fileDoc)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixFile)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var doc fileDoc
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return err
		}
		fn(&doc)
	}
	return nil
}

func scanOwner(ctx context.Context, txn *badger.Txn, owner string, fn func(*fileDoc)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = keyOwnerFilenamePrefix(owner)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		doc, err := getDoc(txn, string(id))
		if err != nil {
			return err
		}
		if doc != nil {
			fn(doc)
		}
	}
	return nil
}

func matchesFilter(doc *fileDoc, filter store.FileFilter) bool {
	if filter.OwnerID != "" && doc.OwnerID != filter.OwnerID {
		return false
	}
	if filter.Visibility != "" && doc.Visibility != string(filter.Visibility) {
		return false
	}
	tag := strings.ToLower(strings.TrimSpace(filter.Tag))
	if tag == "" {
		return true
	}
	for _, t := range doc.Tags {
		if strings.Contains(strings.ToLower(t), tag) {
			return true
		}
	}
	return false
}

func sortDocs(docs []*fileDoc, order models.ListSort) {
	less := func(a, b *fileDoc) int {
		switch order.Field {
		case models.SortByUploadedAt:
			return a.UploadedAt.Compare(b.UploadedAt)
		case models.SortBySize:
			return compareInt64(a.SizeBytes, b.SizeBytes)
		case models.SortByContentType:
			return strings.Compare(a.sortContentType(), b.sortContentType())
		case models.SortByVisibility:
			return strings.Compare(a.Visibility, b.Visibility)
		default:
			return strings.Compare(a.Filename, b.Filename)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		c := less(docs[i], docs[j])
		if c == 0 {
			c = strings.Compare(docs[i].ID, docs[j].ID)
		}
		if order.Direction == models.SortDesc {
			return c > 0
		}
		return c < 0
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func keyTaken(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func getIndex(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

func getDoc(txn *badger.Txn, id string) (*fileDoc, error) {
	item, err := txn.Get(keyFile(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc fileDoc
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, fmt.Errorf("decode file %s: %w", id, err)
	}
	return &doc, nil
}

// mapTxnError turns an optimistic-concurrency abort into a conflict.
func mapTxnError(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return &store.ConflictError{Constraint: store.ConstraintConcurrent, Err: err}
	}
	return err
}

func docFromRecord(file *models.FileRecord) *fileDoc {
	tags := append([]string(nil), file.Tags...)
	if tags == nil {
		tags = []string{}
	}
	return &fileDoc{
		ID:           file.ID,
		OwnerID:      file.OwnerID,
		Filename:     file.Filename,
		Visibility:   string(file.Visibility),
		Tags:         tags,
		ContentType:  file.ContentType,
		DetectedType: file.DetectedType,
		SizeBytes:    file.SizeBytes,
		ContentHash:  file.ContentHash,
		BlobKey:      file.BlobKey,
		PublicToken:  file.PublicToken,
		UploadedAt:   file.UploadedAt.UTC(),
	}
}

func (d *fileDoc) record() *models.FileRecord {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.FileRecord{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		Filename:     d.Filename,
		Visibility:   models.Visibility(d.Visibility),
		Tags:         tags,
		ContentType:  d.ContentType,
		DetectedType: d.DetectedType,
		SizeBytes:    d.SizeBytes,
		ContentHash:  d.ContentHash,
		BlobKey:      d.BlobKey,
		PublicToken:  d.PublicToken,
		UploadedAt:   d.UploadedAt,
	}
}

func (d *fileDoc) sortContentType() string {
	if d.DetectedType != "" {
		return d.DetectedType
	}
	return d.ContentType
}
