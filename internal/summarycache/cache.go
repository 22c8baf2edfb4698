// Package summarycache implements C6: a process-local, per-URL cache of
// generated summaries so the metadata-preview endpoint can warm the cache
// and the later full-insight ingestion skips a redundant LLM call.
package summarycache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const defaultTTL = time.Hour

// Entry mirrors SummaryCacheEntry (spec §3).
type Entry struct {
	URL     string
	Status  Status
	Summary string
	Error   string
}

// Cache is a MonitorMap over per-URL summary generation: at most one
// "generating" task exists per URL at any instant, concurrent callers
// coalesce onto it via singleflight (spec §4.6 redesign flag).
type Cache struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *Entry]
	group   singleflight.Group
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{entries: expirable.NewLRU[string, *Entry](size, nil, ttl)}
}

// Get returns the cached entry for a URL, or nil if absent or expired.
func (c *Cache) Get(url string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries.Get(url)
	if !ok {
		return nil
	}
	return entry
}

// Begin implements the atomic CAS from spec §4.6: if absent, insert
// generating and return (entry, true, caller-owns). If a completed entry
// exists, return it for reuse. If a generating entry exists, the caller
// should use GetOrGenerate to await the in-flight result instead of calling Begin.
func (c *Cache) Begin(url string) (entry *Entry, owns bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries.Get(url); ok && existing.Status == StatusCompleted {
		return existing, false
	}
	fresh := &Entry{URL: url, Status: StatusGenerating}
	c.entries.Add(url, fresh)
	return fresh, true
}

// Complete terminally transitions an entry to completed.
func (c *Cache) Complete(url, summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(url, &Entry{URL: url, Status: StatusCompleted, Summary: summary})
}

// Fail terminally transitions an entry to failed.
func (c *Cache) Fail(url string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.entries.Add(url, &Entry{URL: url, Status: StatusFailed, Error: msg})
}

// GetOrGenerate coalesces concurrent callers for the same URL onto a single
// generate call via singleflight, reusing a completed cache entry when one
// is fresh. This is the entrypoint C7 and the metadata-preview endpoint use.
func (c *Cache) GetOrGenerate(url string, generate func() (string, error)) (string, error) {
	if existing := c.Get(url); existing != nil && existing.Status == StatusCompleted {
		return existing.Summary, nil
	}
	summary, err, _ := c.group.Do(url, func() (interface{}, error) {
		c.Begin(url)
		summary, err := generate()
		if err != nil {
			c.Fail(url, err)
			return "", err
		}
		c.Complete(url, summary)
		return summary, nil
	})
	if err != nil {
		return "", err
	}
	return summary.(string), nil
}
