package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestUploadStreamsMultipartWithMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get(userIDHeader); got != "alice" {
			t.Errorf("user header = %q", got)
		}
		if got := r.URL.Query().Get("visibility"); got != "PUBLIC" {
			t.Errorf("visibility = %q", got)
		}
		if got := r.URL.Query()["tags"]; len(got) != 2 {
			t.Errorf("tags = %v", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if string(body) != "hello" || header.Filename != "hello.txt" {
			t.Errorf("unexpected part %q %q", header.Filename, body)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(FileResponse{ID: "fl-1", Filename: header.Filename, Size: int64(len(body))})
	}))
	defer srv.Close()

	client := NewClient(srv.URL).WithUserID("alice")
	resp, err := client.Upload(context.Background(), UploadRequest{
		Filename:   "hello.txt",
		Visibility: "PUBLIC",
		Tags:       []string{"a", "b"},
	}, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.ID != "fl-1" || resp.Size != 5 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDecodeErrorKeepsStatusAndCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "access denied", Code: "forbidden", ErrorCode: 3002})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListPublic(context.Background())
	if !IsForbidden(err) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode != 3002 {
		t.Fatalf("unexpected error %#v", err)
	}
	if IsNotFound(err) || IsConflict(err) {
		t.Fatal("status helpers should not match")
	}
}

func TestDownloadParsesHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files/download/tok" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Disposition", `attachment; filename="report 1.txt"`)
		w.Header().Set("Content-Length", "3")
		_, _ = w.Write([]byte("abc"))
	}))
	defer srv.Close()

	download, err := NewClient(srv.URL).Download(context.Background(), "tok")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer download.Body.Close()
	body, _ := io.ReadAll(download.Body)
	if string(body) != "abc" || download.Filename != "report 1.txt" || download.SizeBytes != 3 || download.ContentType != "text/plain" {
		t.Fatalf("unexpected download %+v body=%q", download, body)
	}
}

func TestGCSendsConfirmAndAdminToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Confirm") != "true" || r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(GCResponse{DeletedCount: 2})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).WithAdminToken("secret").GC(context.Background(), GCRequest{}, true)
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if resp.DeletedCount != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}
