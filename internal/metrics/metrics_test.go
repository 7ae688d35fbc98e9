package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveUploadCountsBytesOnlyOnSuccess(t *testing.T) {
	m := New()
	m.ObserveUpload(ResultOK, 128)
	m.ObserveUpload(ResultDuplicate, 64)

	if got := testutil.ToFloat64(m.uploads.WithLabelValues(ResultOK)); got != 1 {
		t.Fatalf("ok uploads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.uploads.WithLabelValues(ResultDuplicate)); got != 1 {
		t.Fatalf("duplicate uploads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.uploadBytes); got != 128 {
		t.Fatalf("upload bytes = %v, want 128", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/files/download/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := m.Middleware(mux)

	for _, token := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/files/download/"+token, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "GET /v1/files/download/{token}", "204"))
	if got != 3 {
		t.Fatalf("download route count = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, unmatchedRoute, "404")); got != 1 {
		t.Fatalf("unmatched count = %v, want 1", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveGC(2, 2048)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "fstore_gc_deleted_blobs_total 2") {
		t.Fatalf("expected gc counter in output:\n%s", body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveUpload(ResultOK, 1)
	m.ObserveDownload(ResultOK)
	m.ObserveGC(1, 1)
	if m.Middleware(http.NotFoundHandler()) == nil {
		t.Fatal("expected passthrough handler")
	}
}
