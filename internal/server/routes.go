package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Files.
	mux.Handle("POST /v1/files/upload", s.withCaller(http.HandlerFunc(s.handleUpload)))
	mux.Handle("GET /v1/files", s.withCaller(http.HandlerFunc(s.handleListFiles)))
	mux.Handle("GET /v1/files/public", s.withCaller(http.HandlerFunc(s.handleListPublic)))
	mux.Handle("DELETE /v1/files/{id}", s.withCaller(http.HandlerFunc(s.handleDeleteFile)))
	mux.Handle("PATCH /v1/files/{id}/rename", s.withCaller(http.HandlerFunc(s.handleRenameFile)))
	mux.Handle("GET /v1/files/download/{token}", s.withCaller(http.HandlerFunc(s.handleDownload)))

	// Admin.
	mux.HandleFunc("POST /v1/admin/gc", s.requireAdmin(s.handleAdminGC))

	return mux
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.metrics.Middleware(s.withRequestLogging(s.routes()))
}
