// Package cache provides a cache for AI generation results, so identical
// generation requests within the TTL are served without a gateway round trip.
// Supports in-memory and Redis backends for multi-instance deployments.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"flashdeck/internal/core"
)

// DefaultTTL bounds how long a generation result is reused. Model output for
// the same prompt drifts over time; a short TTL keeps repeats cheap without
// freezing content forever.
const DefaultTTL = time.Hour

// Entry is a cached generation result.
type Entry struct {
	Cards     []core.GeneratedCard `json:"cards"`
	Model     string               `json:"model"`
	CreatedAt time.Time            `json:"created_at"`
}

// Cache stores generation results by key.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves an entry. Returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores an entry under key for the backend's TTL.
	Set(ctx context.Context, key string, entry *Entry) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key derives a stable cache key from the inputs that determine a generation
// result: the model and the exact prompt text.
func Key(model, prompt string) string {
	h := xxhash.New()
	_, _ = h.WriteString(model)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(prompt)
	return strconv.FormatUint(h.Sum64(), 16)
}
