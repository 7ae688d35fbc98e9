package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minAdminTokenLength = 16

// ValidateAdminToken checks minimal admin token requirements.
func ValidateAdminToken(token string) error {
	if len(token) < minAdminTokenLength {
		return fmt.Errorf("admin token must be at least %d characters", minAdminTokenLength)
	}
	return nil
}

// HashAdminToken hashes one plaintext admin token for the config file.
func HashAdminToken(token string) (string, error) {
	if err := ValidateAdminToken(token); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyAdminToken verifies a presented token against a bcrypt hash.
// An empty hash never verifies.
func VerifyAdminToken(tokenHash, candidate string) bool {
	if strings.TrimSpace(tokenHash) == "" || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(candidate)) == nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
