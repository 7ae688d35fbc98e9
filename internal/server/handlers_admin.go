package server

import (
	"fmt"
	"net/http"
	"time"

	"fstore/internal/api"
	"fstore/internal/auth"
)

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminTokenHash == "" {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("admin api is disabled")))
			return
		}
		client := clientAddr(r)
		if s.adminLimiter.Blocked(client, time.Now()) {
			s.writeErrorReq(w, r, http.StatusTooManyRequests, tooManyAttempts(fmt.Errorf("too many failed admin attempts; retry later")))
			return
		}
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok || !auth.VerifyAdminToken(s.adminTokenHash, token) {
			s.adminLimiter.Fail(client, time.Now())
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("invalid admin token")))
			return
		}
		s.adminLimiter.Succeed(client)
		next(w, r)
	}
}

func (s *Server) handleAdminGC(w http.ResponseWriter, r *http.Request) {
	var req api.GCRequest
	if r.ContentLength != 0 {
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
	}
	if !req.DryRun && r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("non-dry-run requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}

	var grace time.Duration
	if req.GracePeriod != "" {
		parsed, err := time.ParseDuration(req.GracePeriod)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid grace_period: %w", err), ErrCodeInvalidArgument))
			return
		}
		grace = parsed
	} else {
		grace = s.gcGracePeriod
	}

	result, err := s.files.GCBlobs(r.Context(), GCOptions{DryRun: req.DryRun, GracePeriod: grace})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.GCResponse{
		ScannedCount:   result.ScannedCount,
		CandidateCount: result.CandidateCount,
		DeletedCount:   result.DeletedCount,
		FailedCount:    result.FailedCount,
		ReclaimedBytes: result.ReclaimedBytes,
		StagingSwept:   result.StagingSwept,
		DryRun:         result.DryRun,
	})
}
