package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CacheKey identifies a cached response by endpoint and request payload.
type CacheKey struct {
	// Endpoint is the path the payload was posted to (e.g., "/ner")
	Endpoint string

	// Payload is the serialised request envelope
	Payload []byte
}

// String generates a deterministic cache key string.
// Format: sumapi:endpoint:sha256(payload)
//
// Example:
//
//	sumapi:sentiment-analysis:9f86d081884c7d65...
func (k CacheKey) String() string {
	parts := []string{"sumapi"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	sum := sha256.Sum256(k.Payload)
	parts = append(parts, hex.EncodeToString(sum[:]))

	return strings.Join(parts, ":")
}
