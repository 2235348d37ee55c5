package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandomString returns length random URL-safe characters.
func GenerateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}
