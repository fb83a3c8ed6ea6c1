package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomSecret returns n bytes of crypto/rand as unpadded base64url.
// Used for signing keys generated at startup.
func RandomSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random secret: size must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
