package store

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const (
	fileIDPrefix    = "fl-"
	fileIDRandBytes = 10 // 16 base32 characters
	idMaxAttempts   = 20
)

var idEncoding = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// IDExistsFunc reports whether id is already taken.
type IDExistsFunc func(ctx context.Context, id string) (bool, error)

// GenerateFileID returns a fresh fl-<random> id, retrying while exists
// reports a collision. A nil exists accepts the first candidate.
func GenerateFileID(ctx context.Context, exists IDExistsFunc) (string, error) {
	buf := make([]byte, fileIDRandBytes)
	for attempt := 0; attempt < idMaxAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random id: %w", err)
		}
		id := fileIDPrefix + idEncoding.EncodeToString(buf)
		if exists == nil {
			return id, nil
		}
		taken, err := exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free file id after %d attempts", idMaxAttempts)
}

// IsFileID reports whether id has the shape GenerateFileID produces.
func IsFileID(id string) bool {
	rest, ok := strings.CutPrefix(id, fileIDPrefix)
	if !ok || len(rest) != idEncoding.EncodedLen(fileIDRandBytes) {
		return false
	}
	_, err := idEncoding.DecodeString(rest)
	return err == nil
}
