package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Visibility is the access classification of a stored file.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

const (
	MaxTags           = 5
	MaxTagLength      = 100
	MaxFilenameLength = 255
)

var validVisibilities = map[Visibility]struct{}{
	VisibilityPublic:  {},
	VisibilityPrivate: {},
}

// FileRecord is the catalog entry for one stored file.
type FileRecord struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	OwnerID      string     `json:"owner_id"`
	Visibility   Visibility `json:"visibility"`
	Tags         []string   `json:"tags"`
	ContentType  string     `json:"content_type,omitempty"`
	DetectedType string     `json:"detected_type,omitempty"`
	SizeBytes    int64      `json:"size"`
	ContentHash  string     `json:"content_hash"`
	UploadedAt   time.Time  `json:"uploaded_at"`
	PublicToken  string     `json:"public_token"`
	BlobKey      string     `json:"-"`
}

// FileView is a record as handed to callers. DownloadLink is derived from
// PublicToken on every read and never persisted.
type FileView struct {
	FileRecord
	DownloadLink string `json:"download_link"`
}

// Valid reports whether v is one of the known visibilities.
func (v Visibility) Valid() bool {
	_, ok := validVisibilities[v]
	return ok
}

// ParseVisibility accepts PUBLIC or PRIVATE in any case.
func ParseVisibility(raw string) (Visibility, error) {
	value := Visibility(strings.ToUpper(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("visibility is required")
	}
	if !value.Valid() {
		return "", fmt.Errorf("invalid visibility: %s", strings.TrimSpace(raw))
	}
	return value, nil
}

// NormalizeTags trims tags, drops empty and repeated entries and enforces
// the MaxTags cap.
func NormalizeTags(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > MaxTagLength {
			return nil, fmt.Errorf("tag %q exceeds %d characters", tag, MaxTagLength)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, fmt.Errorf("at most %d tags are allowed, got %d", MaxTags, len(out))
	}
	return out, nil
}

// NormalizeFilename trims name and rejects values that cannot be used as a
// plain file name.
func NormalizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	if len(name) > MaxFilenameLength {
		return "", fmt.Errorf("filename exceeds %d characters", MaxFilenameLength)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("filename must not contain path separators")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("filename must not contain control characters")
		}
	}
	return name, nil
}
