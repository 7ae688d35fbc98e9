package server

import (
	"context"
	"net/http"

	"fstore/internal/auth"
)

type callerContextKey struct{}

func contextWithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, userID)
}

// callerFromContext returns the caller id, or "" for anonymous requests.
func callerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(callerContextKey{}).(string)
	return userID
}

// withCaller resolves X-User-Id. The transport in front of fstore is trusted
// to have authenticated it; an absent header means anonymous.
func (s *Server) withCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(auth.UserIDHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := auth.NormalizeUserID(raw)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithCaller(r.Context(), userID)))
	})
}
