package server

import (
	"net/http"
	"time"

	"fstore/internal/api"
)

const serviceName = "fstore"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "UP", Service: serviceName, Timestamp: time.Now().UTC()}
	if _, err := s.catalog.CountFiles(r.Context()); err != nil {
		s.log().Error("health check catalog", "error", err)
		resp.Status = "DOWN"
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
