package server

import (
	"errors"
	"net/http"
)

// apiError carries the HTTP classification of a failure through the service
// layer. The innermost classification wins when errors are wrapped twice.
type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error { return e.err }

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	var inner apiError
	if errors.As(err, &inner) && inner.status != 0 {
		return inner
	}
	return apiError{status: status, code: code, errCode: errCode, err: err}
}

// classifier builds a constructor for one fixed status/code pair.
func classifier(status int, code string, errCode int) func(error) error {
	return func(err error) error { return makeAPIError(status, code, errCode, err) }
}

var (
	duplicateContent  = classifier(http.StatusConflict, "duplicate_content", ErrCodeDuplicateContent)
	duplicateFilename = classifier(http.StatusConflict, "duplicate_filename", ErrCodeDuplicateFilename)
	conflict          = classifier(http.StatusConflict, "conflict", ErrCodeConflict)
	forbidden         = classifier(http.StatusForbidden, "forbidden", ErrCodeForbidden)
	unauthorized      = classifier(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized)
	tooManyAttempts   = classifier(http.StatusTooManyRequests, "resource_exhausted", ErrCodeTooManyTries)
	storeUnavailable  = classifier(http.StatusServiceUnavailable, "unavailable", ErrCodeStoreUnavailable)
	blobUnavailable   = classifier(http.StatusServiceUnavailable, "unavailable", ErrCodeBlobUnavailable)
	internalError     = classifier(http.StatusInternalServerError, "internal", ErrCodeInternal)
	badRequest        = classifier(http.StatusBadRequest, "invalid_argument", ErrCodeInvalidArgument)
)

func badRequestCode(err error, errCode int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", errCode, err)
}

func notFoundCode(err error, errCode int) error {
	return makeAPIError(http.StatusNotFound, "not_found", errCode, err)
}

func asAPIError(err error) (apiError, bool) {
	var apiErr apiError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

func httpStatusFromError(err error) int {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	if apiErr, ok := asAPIError(err); ok && apiErr.code != "" {
		return apiErr.code
	}
	return statusDefaults[status].code
}

func errorNumericCode(status int, err error) int {
	if apiErr, ok := asAPIError(err); ok && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return statusDefaults[status].errCode
}
