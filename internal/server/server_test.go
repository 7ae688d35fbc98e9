package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7333")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7333" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		_, err := ListenAddr("http://0.0.0.0:7333")
		if err == nil {
			t.Fatal("expected error for non-loopback listen host")
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7333")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7333" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		numeric int
	}{
		{name: "duplicate content", err: duplicateContent(errors.New("dup")), status: http.StatusConflict, code: "duplicate_content", numeric: ErrCodeDuplicateContent},
		{name: "duplicate filename", err: duplicateFilename(errors.New("dup")), status: http.StatusConflict, code: "duplicate_filename", numeric: ErrCodeDuplicateFilename},
		{name: "conflict", err: conflict(errors.New("race")), status: http.StatusConflict, code: "conflict", numeric: ErrCodeConflict},
		{name: "forbidden", err: forbidden(errors.New("no")), status: http.StatusForbidden, code: "forbidden", numeric: ErrCodeForbidden},
		{name: "blob unavailable", err: blobUnavailable(errors.New("io")), status: http.StatusServiceUnavailable, code: "unavailable", numeric: ErrCodeBlobUnavailable},
		{name: "wrapped keeps first classification", err: fmt.Errorf("outer: %w", notFoundCode(errors.New("gone"), ErrCodeContentNotFound)), status: http.StatusNotFound, code: "not_found", numeric: ErrCodeContentNotFound},
		{name: "plain error", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal", numeric: ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := httpStatusFromError(tt.err)
			if status != tt.status {
				t.Fatalf("status = %d, want %d", status, tt.status)
			}
			if got := errorCode(status, tt.err); got != tt.code {
				t.Fatalf("code = %q, want %q", got, tt.code)
			}
			if got := errorNumericCode(status, tt.err); got != tt.numeric {
				t.Fatalf("numeric code = %d, want %d", got, tt.numeric)
			}
		})
	}
}
