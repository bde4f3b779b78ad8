package storage

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/katalis/laku/internal/port"
)

type guardEntry struct {
	claimedAt time.Time
	element   *list.Element
}

// MemoryGuard is a process-local IdempotencyGuard for single-instance
// deployments. Keys expire after ttl and the oldest key is evicted once
// maxSize is reached.
type MemoryGuard struct {
	mu      sync.Mutex
	seen    map[string]*guardEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

var _ port.IdempotencyGuard = (*MemoryGuard)(nil)

func NewMemoryGuard(ttl time.Duration, maxSize int) *MemoryGuard {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryGuard{
		seen:    make(map[string]*guardEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Claim checks and marks key in one step.
func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if entry, ok := g.seen[key]; ok {
		if now.Sub(entry.claimedAt) < g.ttl {
			return false, nil
		}
		g.order.Remove(entry.element)
		delete(g.seen, key)
	}

	if len(g.seen) >= g.maxSize {
		g.evictOldest()
	}
	g.seen[key] = &guardEntry{claimedAt: now, element: g.order.PushBack(key)}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if entry, ok := g.seen[key]; ok {
		g.order.Remove(entry.element)
		delete(g.seen, key)
	}
	return nil
}

// Len reports the number of tracked keys, expired or not.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// must be called with mu held
func (g *MemoryGuard) evictOldest() {
	front := g.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	g.order.Remove(front)
	delete(g.seen, key)
}
