package search

import (
	"time"

	"glowbudget/internal/cache"
)

type compiled struct {
	matcher *Matcher
	status  Status
}

// Compiler memoizes Compile results. The table partial is re-rendered on
// every keystroke, so the same few patterns are compiled over and over.
type Compiler struct {
	cache *cache.LRU[compiled]
}

func NewCompiler(size int, ttl time.Duration) *Compiler {
	return &Compiler{cache: cache.NewLRU[compiled](size, ttl)}
}

// Compile behaves like the package-level Compile.
func (c *Compiler) Compile(text string, caseSensitive bool) (*Matcher, Status) {
	if text == "" {
		return nil, StatusNone
	}
	key := cacheKey(text, caseSensitive)
	if hit, ok := c.cache.Get(key); ok {
		return hit.matcher, hit.status
	}
	m, st := Compile(text, caseSensitive)
	c.cache.Set(key, compiled{matcher: m, status: st})
	return m, st
}

// Cleaner exposes the underlying cache for periodic cleanup.
func (c *Compiler) Cleaner() cache.Cleaner {
	return c.cache
}

func (c *Compiler) Size() int {
	return c.cache.Size()
}

func cacheKey(text string, caseSensitive bool) string {
	if caseSensitive {
		return "cs:" + text
	}
	return "ci:" + text
}
