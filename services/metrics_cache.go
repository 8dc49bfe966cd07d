// services/metrics_cache.go
package services

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// MetricTTL is how long an aggregate stays cached before a read recomputes it.
const MetricTTL = 600 * time.Second

// Metric kinds used as cache-key prefixes.
const (
	MetricTrendline = "trendline"
	MetricCohorts   = "cohorts"
	MetricAvgTime   = "avg_time"
)

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// MetricsCache memoizes aggregator outputs keyed by (metric, window,
// veteran-or-"all"). It is injected into the services that need it — no
// package-level state.
//
// Invalidation is coarse: a write for one veteran clears every metric entry,
// not just that veteran's. This trades cache-hit rate for simplicity and makes
// the invalidation hooks trivially idempotent.
type MetricsCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func NewMetricsCache() *MetricsCache {
	return &MetricsCache{
		entries: make(map[string]cacheEntry),
		ttl:     MetricTTL,
	}
}

func metricKey(metric string, window int, veteranID string) string {
	scope := veteranID
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("%s:%d:%s", metric, window, scope)
}

// Get returns the cached value for (metric, window, veteranID), or false when
// the entry is missing or expired.
func (c *MetricsCache) Get(metric string, window int, veteranID string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[metricKey(metric, window, veteranID)]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a freshly computed aggregate. Concurrent misses may both Set the
// same key; last write wins, which is fine because the computation is pure.
func (c *MetricsCache) Set(metric string, window int, veteranID string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[metricKey(metric, window, veteranID)] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// InvalidateVeteran drops all cached metrics after a write touching the given
// veteran. Coarse on purpose — see type comment.
func (c *MetricsCache) InvalidateVeteran(veteranID string) {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	if n > 0 {
		log.Printf("🧹 [CACHE] Invalidated %d metric entries (veteran=%s)", n, veteranID)
	}
}

// InvalidateAll drops every cached metric.
func (c *MetricsCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// SweepExpired removes expired entries so the map does not grow unbounded
// between reads. Called periodically by the scheduler.
func (c *MetricsCache) SweepExpired() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live entries (expired included until swept).
func (c *MetricsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
