package common

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateSecureRandomString returns a URL-safe random string of exactly
// length characters.
func GenerateSecureRandomString(length int) (string, error) {
	// base64 expands by 4/3
	byteLength := (length*3 + 3) / 4

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(buf)
	return encoded[:length], nil
}
