package clickup

import (
	"sync"
	"time"

	"github.com/christopherklint97/workcal/internal/engine"
)

type TaskCache struct {
	mu        sync.RWMutex
	tasks     []engine.Task
	fetchedAt time.Time
	ttl       time.Duration
}

func NewTaskCache(ttl time.Duration) *TaskCache {
	return &TaskCache{ttl: ttl}
}

// Get returns a copy of the cached tasks, or nil when empty or expired.
func (c *TaskCache) Get() []engine.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.tasks == nil || time.Since(c.fetchedAt) > c.ttl {
		return nil
	}

	result := make([]engine.Task, len(c.tasks))
	copy(result, c.tasks)
	return result
}

func (c *TaskCache) Set(tasks []engine.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasks = make([]engine.Task, len(tasks))
	copy(c.tasks, tasks)
	c.fetchedAt = time.Now()
}

func (c *TaskCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasks = nil
}
