package helpers

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomSecret returns n random bytes encoded as a URL-safe string.
func RandomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
