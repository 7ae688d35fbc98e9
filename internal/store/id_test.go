package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerateFileID(t *testing.T) {
	ctx := context.Background()

	t.Run("shape", func(t *testing.T) {
		id, err := GenerateFileID(ctx, nil)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !strings.HasPrefix(id, "fl-") || len(id) != 3+16 {
			t.Fatalf("unexpected id %q", id)
		}
		if !IsFileID(id) {
			t.Fatalf("IsFileID(%q) = false", id)
		}
	})

	t.Run("retries collisions", func(t *testing.T) {
		var seen []string
		id, err := GenerateFileID(ctx, func(_ context.Context, candidate string) (bool, error) {
			seen = append(seen, candidate)
			return len(seen) < 3, nil
		})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(seen) != 3 || seen[2] != id {
			t.Fatalf("expected third candidate to win, saw %v and got %q", seen, id)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		always := func(context.Context, string) (bool, error) { return true, nil }
		if _, err := GenerateFileID(ctx, always); err == nil {
			t.Fatal("expected error after max attempts")
		}
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		boom := errors.New("catalog down")
		_, err := GenerateFileID(ctx, func(context.Context, string) (bool, error) { return false, boom })
		if !errors.Is(err, boom) {
			t.Fatalf("expected lookup error, got %v", err)
		}
	})
}

func TestIsFileID(t *testing.T) {
	for _, id := range []string{"", "fl-", "fl-short", "xx-0123456789abcdef", "fl-0123456789ABCDEF", "fl-0123456789abcdeu"} {
		if IsFileID(id) {
			t.Fatalf("IsFileID(%q) = true", id)
		}
	}
	if !IsFileID("fl-0123456789abcdef") {
		t.Fatal("expected valid id")
	}
}
