package models

import (
	"fmt"
	"strings"
)

// SortField names a record attribute listings can be ordered by.
type SortField string

const (
	SortByFilename    SortField = "filename"
	SortByUploadedAt  SortField = "uploaded_at"
	SortBySize        SortField = "size"
	SortByContentType SortField = "content_type"
	SortByVisibility  SortField = "visibility"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

const (
	DefaultSortField     = SortByFilename
	DefaultSortDirection = SortAsc
)

var sortFieldAliases = map[string]SortField{
	"filename":     SortByFilename,
	"name":         SortByFilename,
	"uploaded_at":  SortByUploadedAt,
	"uploadedat":   SortByUploadedAt,
	"uploaddate":   SortByUploadedAt,
	"upload_date":  SortByUploadedAt,
	"size":         SortBySize,
	"content_type": SortByContentType,
	"contenttype":  SortByContentType,
	"visibility":   SortByVisibility,
}

// ListSort is an ordering request.
type ListSort struct {
	Field     SortField
	Direction SortDirection
}

// ParseSortField accepts snake_case and camelCase attribute names.
// An empty value selects the default field.
func ParseSortField(raw string) (SortField, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return DefaultSortField, nil
	}
	field, ok := sortFieldAliases[value]
	if !ok {
		return "", fmt.Errorf("unknown sort field: %s", strings.TrimSpace(raw))
	}
	return field, nil
}

// ParseSortDirection accepts ASC or DESC in any case; empty means the default direction.
func ParseSortDirection(raw string) (SortDirection, error) {
	value := SortDirection(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case "":
		return DefaultSortDirection, nil
	case SortAsc, SortDesc:
		return value, nil
	default:
		return "", fmt.Errorf("invalid sort direction: %s", strings.TrimSpace(raw))
	}
}

// Valid reports whether f is a known sort field.
func (f SortField) Valid() bool {
	for _, known := range sortFieldAliases {
		if known == f {
			return true
		}
	}
	return false
}
