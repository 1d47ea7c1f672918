package templates

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Token matches one well-formed placeholder. Group 1 is the name, which may
// be padded with spaces inside the braces. Stray or unbalanced braces never match.
const Token = `\{\{\s*([^{}\s][^{}]*?)\s*\}\}`

var tokenPattern = regexp.MustCompile(Token)

// TokenPattern returns the compiled placeholder pattern.
func TokenPattern() *regexp.Regexp {
	return tokenPattern
}

// ExtractPlaceholders returns the distinct placeholder names in body in order
// of first appearance.
func ExtractPlaceholders(body string) []string {
	names := []string{}
	seen := make(map[string]bool)
	for _, m := range tokenPattern.FindAllStringSubmatch(body, -1) {
		name := strings.TrimSpace(m[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Hash returns the hex sha256 of body.
func Hash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

const defaultCacheEntries = 512

// PlaceholderCache memoizes ExtractPlaceholders by body hash. Concurrent
// requests for the same body share one extraction.
type PlaceholderCache struct {
	mu      sync.RWMutex
	entries map[string][]string
	limit   int
	group   singleflight.Group
}

// NewPlaceholderCache creates a cache holding at most limit bodies.
// A non-positive limit selects the default.
func NewPlaceholderCache(limit int) *PlaceholderCache {
	if limit <= 0 {
		limit = defaultCacheEntries
	}
	return &PlaceholderCache{
		entries: make(map[string][]string),
		limit:   limit,
	}
}

// Get returns the placeholders of body. The returned slice is owned by the caller.
func (c *PlaceholderCache) Get(body string) []string {
	key := Hash(body)

	c.mu.RLock()
	names, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return slices.Clone(names)
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		names := ExtractPlaceholders(body)

		c.mu.Lock()
		if len(c.entries) >= c.limit {
			clear(c.entries)
		}
		c.entries[key] = names
		c.mu.Unlock()

		return names, nil
	})
	return slices.Clone(v.([]string))
}

// Len reports the number of cached bodies.
func (c *PlaceholderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
