package pool

import (
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ResponseCache memoizes formatted answers per normalized query text.
// It fronts the remote-reasoning path only; misses are never populated
// by the cache itself — the caller stores the answer after a successful
// backend call. A disabled cache misses every read and drops every
// write, so callers need no branching.
type ResponseCache struct {
	enabled bool
	ttl     time.Duration
	clock   Clock
	entries *xsync.MapOf[string, cacheEntry]
}

type cacheEntry struct {
	text      string
	expiresAt time.Time
}

func NewResponseCache(enabled bool, ttl time.Duration, clock Clock) *ResponseCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ResponseCache{
		enabled: enabled,
		ttl:     ttl,
		clock:   clock,
		entries: xsync.NewMapOf[string, cacheEntry](),
	}
}

// NormalizeQuery lower-cases the text and collapses runs of whitespace
// so lookups are insensitive to casing and spacing. The normalized
// string itself is the cache key; distinct queries never collide.
func NormalizeQuery(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Get returns the cached answer for the query. An expired entry found
// on the way is removed and reported as a miss.
func (c *ResponseCache) Get(query string) (string, bool) {
	if c == nil || !c.enabled {
		return "", false
	}
	key := NormalizeQuery(query)
	entry, ok := c.entries.Load(key)
	if !ok {
		return "", false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		c.entries.Delete(key)
		return "", false
	}
	return entry.text, true
}

// Put stores the answer under the normalized query for the configured
// TTL and opportunistically sweeps whatever expired entries remain.
// Empty answers are not cached.
func (c *ResponseCache) Put(query, text string) {
	if c == nil || !c.enabled || strings.TrimSpace(text) == "" {
		return
	}
	now := c.clock.Now()
	c.entries.Store(NormalizeQuery(query), cacheEntry{text: text, expiresAt: now.Add(c.ttl)})
	c.sweep(now)
}

func (c *ResponseCache) sweep(now time.Time) int {
	removed := 0
	c.entries.Range(func(key string, entry cacheEntry) bool {
		if !now.Before(entry.expiresAt) {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Size reports stored entries, including expired ones not yet swept.
func (c *ResponseCache) Size() int {
	if c == nil || !c.enabled {
		return 0
	}
	return c.entries.Size()
}
