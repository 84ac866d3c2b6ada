package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a random identifier with an optional type prefix,
// used for media references and view sessions.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewEntityID returns a UUID for persisted entities (greetings, users).
func NewEntityID() string {
	return uuid.NewString()
}

// NewToken returns an opaque bearer-style token for grants.
func NewToken() string {
	bytes := make([]byte, 24)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
