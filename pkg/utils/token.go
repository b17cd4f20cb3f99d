package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateURLToken returns n random bytes as unpadded URL-safe base64 (about 4n/3 chars).
// n <= 0 means 16.
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 16
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
