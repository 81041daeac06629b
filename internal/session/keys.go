package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewSessionKey returns a random URL-safe session key for a first-time guest.
func NewSessionKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
