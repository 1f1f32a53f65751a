// Package cache provides an in-memory, per-filter cache of taskwarrior
// export results. It keeps serve mode responsive between keystrokes without
// the plugin owning any persistent task state.
package cache

import (
	"sync"
	"time"

	"twlaunch/internal/taskwarrior"
)

type entry struct {
	tasks []taskwarrior.Task
	at    time.Time
}

// ExportCache caches export results per filter string with a TTL.
type ExportCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// New creates a cache with the given TTL.
func New(ttl time.Duration) *ExportCache {
	return &ExportCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached tasks for filter if present and fresh.
func (c *ExportCache) Get(filter string) ([]taskwarrior.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[filter]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.at) > c.ttl {
		delete(c.entries, filter)
		return nil, false
	}
	return e.tasks, true
}

// Set stores the tasks for filter.
func (c *ExportCache) Set(filter string, tasks []taskwarrior.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[filter] = entry{tasks: tasks, at: c.now()}
}

// Invalidate drops every cached entry. Called when the taskwarrior data
// directory changes underneath the plugin.
func (c *ExportCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of cached filters.
func (c *ExportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
