package grantflow

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenLength is the length in hex characters of generated tokens and codes.
const tokenLength = 64 // 32 random bytes, hex encoded

// generateRandomToken returns a cryptographically random, URL-safe opaque
// string. Models that want a different format supply a generator capability.
func generateRandomToken() (string, error) {
	bytes := make([]byte, tokenLength/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
