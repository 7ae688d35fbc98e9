package auth

import (
	"strings"
	"testing"
)

func TestNormalizeUserID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "valid", raw: "alice", want: "alice"},
		{name: "trim", raw: "  bob  ", want: "bob"},
		{name: "case kept", raw: "Alice", want: "Alice"},
		{name: "control chars", raw: "al\x00ice", wantErr: true},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "too long", raw: strings.Repeat("a", maxUserIDLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUserID(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeUserID(%q)=%q want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHashAndVerifyAdminToken(t *testing.T) {
	hash, err := HashAdminToken("admin-token-123456")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	if !VerifyAdminToken(hash, "admin-token-123456") {
		t.Fatal("expected token to verify")
	}
	if VerifyAdminToken(hash, "wrong") {
		t.Fatal("expected wrong token to fail")
	}
	if VerifyAdminToken("", "admin-token-123456") {
		t.Fatal("expected empty hash to fail")
	}
	if _, err := HashAdminToken("short"); err == nil {
		t.Fatal("expected short token to be rejected")
	}
}

func TestBearerToken(t *testing.T) {
	if token, ok := BearerToken("Bearer abc"); !ok || token != "abc" {
		t.Fatalf("unexpected token %q ok=%v", token, ok)
	}
	if token, ok := BearerToken("bearer   xyz "); !ok || token != "xyz" {
		t.Fatalf("unexpected token %q ok=%v", token, ok)
	}
	for _, raw := range []string{"", "Bearer", "Bearer  ", "Basic abc"} {
		if _, ok := BearerToken(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
