package server

import "net/http"

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1001
	ErrCodeInvalidJSON       = 1002
	ErrCodeRequestTooLarge   = 1003
	ErrCodeInvalidQuery      = 1004
	ErrCodeInvalidVisibility = 1005
	ErrCodeInvalidTags       = 1006
	ErrCodeInvalidFilename   = 1007
	ErrCodeInvalidSort       = 1008
	ErrCodeMissingRequired   = 1009

	// Domain state (2xxx)
	ErrCodeFileNotFound      = 2001
	ErrCodeTokenNotFound     = 2002
	ErrCodeContentNotFound   = 2003
	ErrCodeDuplicateContent  = 2101
	ErrCodeDuplicateFilename = 2102
	ErrCodeConflict          = 2103

	// Access (3xxx)
	ErrCodeUnauthorized = 3001
	ErrCodeForbidden    = 3002
	ErrCodeTooManyTries = 3003

	// Availability (4xxx)
	ErrCodeStoreUnavailable = 4001
	ErrCodeBlobUnavailable  = 4002
	ErrCodeInternal         = 4003
)

// statusDefaults labels errors that reach the writer without an apiError
// wrapper.
var statusDefaults = map[int]struct {
	code    string
	errCode int
}{
	http.StatusBadRequest:          {"invalid_argument", ErrCodeInvalidArgument},
	http.StatusUnauthorized:        {"unauthorized", ErrCodeUnauthorized},
	http.StatusForbidden:           {"forbidden", ErrCodeForbidden},
	http.StatusNotFound:            {"not_found", ErrCodeFileNotFound},
	http.StatusConflict:            {"conflict", ErrCodeConflict},
	http.StatusTooManyRequests:     {"resource_exhausted", ErrCodeTooManyTries},
	http.StatusInternalServerError: {"internal", ErrCodeInternal},
	http.StatusServiceUnavailable:  {"unavailable", ErrCodeStoreUnavailable},
}
