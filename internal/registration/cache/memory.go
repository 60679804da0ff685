package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"registro/internal/registration/models"
)

// Memory caches the list in process. Values are copied on the way in and out
// so callers cannot mutate cached records.
type Memory struct {
	mu  sync.Mutex
	gen uint64
	c   *gocache.Cache
	ttl time.Duration
}

// NewMemory builds a cache whose entries expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{c: gocache.New(ttl, 2*ttl), ttl: ttl}
}

func (m *Memory) Get(context.Context) ([]*models.Registration, uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(listKey)
	if !ok {
		return nil, m.gen, false, nil
	}
	recs, ok := v.([]record)
	if !ok {
		return nil, m.gen, false, nil
	}
	return fromRecords(recs), m.gen, true, nil
}

// Set is a no-op when an Invalidate has happened since gen was read.
func (m *Memory) Set(_ context.Context, gen uint64, regs []*models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return nil
	}
	m.c.Set(listKey, toRecords(regs), m.ttl)
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.c.Delete(listKey)
	return nil
}
