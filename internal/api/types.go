package api

import "time"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// FileResponse is one file record as returned by the API.
type FileResponse struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OwnerID      string    `json:"owner_id"`
	Visibility   string    `json:"visibility"`
	Tags         []string  `json:"tags"`
	ContentType  string    `json:"content_type,omitempty"`
	DetectedType string    `json:"detected_type,omitempty"`
	Size         int64     `json:"size"`
	ContentHash  string    `json:"content_hash"`
	UploadedAt   time.Time `json:"uploaded_at"`
	PublicToken  string    `json:"public_token"`
	DownloadLink string    `json:"download_link"`
}

// ListResponse is one page of a file listing.
type ListResponse struct {
	Files []FileResponse `json:"files"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// RenameRequest is the body of PATCH /v1/files/{id}/rename.
type RenameRequest struct {
	Filename string `json:"filename"`
}

// GCRequest controls one blob garbage collection run.
type GCRequest struct {
	DryRun      bool   `json:"dry_run"`
	GracePeriod string `json:"grace_period,omitempty"`
}

// GCResponse reports the outcome of a garbage collection run.
type GCResponse struct {
	ScannedCount   int   `json:"scanned_count"`
	CandidateCount int   `json:"candidate_count"`
	DeletedCount   int   `json:"deleted_count"`
	FailedCount    int   `json:"failed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	StagingSwept   int   `json:"staging_swept"`
	DryRun         bool  `json:"dry_run"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}
