package auth

import (
	"fmt"
	"strings"
	"unicode"
)

const maxUserIDLength = 128

// UserIDHeader carries the pre-authenticated caller identity.
const UserIDHeader = "X-User-Id"

// NormalizeUserID trims a caller id and rejects empty, oversized or
// control-character values. Ids are opaque and compared case-sensitively.
func NormalizeUserID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("user id is required")
	}
	if len(id) > maxUserIDLength {
		return "", fmt.Errorf("user id too long")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("invalid user id")
		}
	}
	return id, nil
}
