package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key from an arbitrary lookup string (e.g. a date
// window "2025-06-09|2025-06-11")
func Key(lookup string) string {
	hash := sha256.Sum256([]byte(lookup))
	return "pulse:v1:" + hex.EncodeToString(hash[:])
}
