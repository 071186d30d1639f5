package register

import "time"

type cacheKey struct {
	tag string
	key string
}

type cacheEntry struct {
	text      string
	decodedAt time.Time
}

// TextCache remembers the last non-empty text decoded for each
// (device, register) pair so slow text registers are not re-read every cycle.
//
// An entry is only written by a successful non-empty read. A failed or empty
// refresh leaves the previous entry and its timestamp untouched, so the read
// is attempted again on the next cycle.
//
// Thread Safety:
//   - Not safe for concurrent use. The sampler goroutine owns the cache.
type TextCache struct {
	interval time.Duration
	entries  map[cacheKey]cacheEntry
}

// NewTextCache creates a cache that refreshes entries older than interval.
func NewTextCache(interval time.Duration) *TextCache {
	return &TextCache{
		interval: interval,
		entries:  make(map[cacheKey]cacheEntry),
	}
}

// Get returns the cached text for (tag, key), calling read first when the
// entry is missing or older than the refresh interval.
//
// Parameters:
//   - tag: device name
//   - key: register key
//   - now: cycle timestamp
//   - read: performs the underlying text read
//
// Returns:
//   - string: cached text
//   - bool: false when nothing has ever been decoded (the value is unknown)
func (c *TextCache) Get(tag, key string, now time.Time, read func() (string, bool)) (string, bool) {
	k := cacheKey{tag: tag, key: key}
	entry, ok := c.entries[k]

	if !ok || now.Sub(entry.decodedAt) > c.interval {
		if text, readOK := read(); readOK && text != "" {
			entry = cacheEntry{text: text, decodedAt: now}
			c.entries[k] = entry
			ok = true
		}
	}

	if !ok {
		return "", false
	}
	return entry.text, true
}

// Len returns the number of cached entries.
func (c *TextCache) Len() int {
	return len(c.entries)
}
