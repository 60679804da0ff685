package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"registro/internal/registration/models"
	"registro/internal/registration/ports"
	"registro/pkg/platform/sentinel"
)

// MemoryStore keeps registrations in process. It serves as its own provider;
// sessions share the same data and Close is a no-op.
type MemoryStore struct {
	mu    sync.RWMutex
	regs  []*models.Registration
	ids   map[string]struct{}
	clock func() time.Time
	last  time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids:   make(map[string]struct{}),
		clock: time.Now,
	}
}

func (s *MemoryStore) Acquire(context.Context) (ports.Store, error) {
	return s, nil
}

// Create stores a copy of reg. CreatedAt is strictly increasing even when the
// wall clock stalls or steps back.
func (s *MemoryStore) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reg.ID.String()
	if _, exists := s.ids[key]; exists {
		return fmt.Errorf("insert registration %s: %w", key, sentinel.ErrConflict)
	}

	now := s.clock().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	reg.CreatedAt = now

	stored := *reg
	s.regs = append(s.regs, &stored)
	s.ids[key] = struct{}{}
	return nil
}

// List returns copies in insert order.
func (s *MemoryStore) List(context.Context) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Registration, len(s.regs))
	for i, reg := range s.regs {
		cp := *reg
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
