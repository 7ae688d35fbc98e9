package main

import (
	"context"
	"fmt"
	"net"
	"testing"

	"fstore/internal/api"
)

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: ensure an fstore server is running at FSTORE_API_URL.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: start local server manually with: fstore srv") {
		t.Fatalf("expected manual-start guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIUnknownServiceGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Message: "api error: 404 Not Found"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify FSTORE_API_URL points to an fstore server.") {
		t.Fatalf("expected api-url guidance, got %v", lines)
	}
}

func TestFormatCLIError_APICodeGuidance(t *testing.T) {
	tests := []struct {
		code   string
		status int
		want   string
	}{
		{"unauthorized", 401, "hint: admin routes need FSTORE_ADMIN_TOKEN matching the server's admin.token_hash."},
		{"forbidden", 403, "hint: PRIVATE files are only visible to their owner; check --user or FSTORE_USER."},
		{"duplicate_filename", 409, "hint: pick another name with --name, or rename the existing file with: fstore mv"},
		{"unavailable", 503, "hint: server returned an internal error; check server logs for details."},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			lines := formatCLIError(&api.APIError{Status: tt.status, Code: tt.code, Message: "x"})
			if !containsLine(lines, tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, lines)
			}
		})
	}
}

func TestFormatCLIError_Timeout(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("list: %w", context.DeadlineExceeded))
	if len(lines) != 2 {
		t.Fatalf("expected error plus one hint, got %v", lines)
	}
}

func TestUniqueLines(t *testing.T) {
	got := uniqueLines([]string{"a", "", "b", "a"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected lines %v", got)
	}
}

func containsLine(lines []string, want string) bool {
	for _, line := range lines {
		if line == want {
			return true
		}
	}
	return false
}
