package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/platform/config"
	"registro/internal/registration/models"
	id "registro/pkg/domain"
)

func sampleList() []*models.Registration {
	return []*models.Registration{
		{ID: id.NewRegistrationID(), Name: "Ana", Email: "ana@example.com", Phone: "1", CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{ID: id.NewRegistrationID(), Name: "Luis", Email: "luis@example.com", Phone: "2", CreatedAt: time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC)},
	}
}

func TestMemoryGetMiss(t *testing.T) {
	regs, gen, ok, err := NewMemory(time.Minute).Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, regs)
	assert.Zero(t, gen)
}

func TestMemorySetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	list := sampleList()

	require.NoError(t, c.Set(ctx, 0, list))
	got, _, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, list[0].ID, got[0].ID)
	assert.Equal(t, "Luis", got[1].Name)

	require.NoError(t, c.Invalidate(ctx))
	_, gen, ok, _ := c.Get(ctx)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), gen)
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	list := sampleList()
	require.NoError(t, c.Set(ctx, 0, list))

	list[0].Name = "changed after set"
	got, _, _, _ := c.Get(ctx)
	assert.Equal(t, "Ana", got[0].Name)

	got[1].Name = "changed after get"
	again, _, _, _ := c.Get(ctx)
	assert.Equal(t, "Luis", again[1].Name)
}

func TestMemoryEntriesExpire(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(20 * time.Millisecond)
	require.NoError(t, c.Set(ctx, 0, sampleList()))

	assert.Eventually(t, func() bool {
		_, _, ok, _ := c.Get(ctx)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemorySetDropsListReadBeforeInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	_, gen, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, gen, sampleList()))

	_, current, ok, _ := c.Get(ctx)
	assert.False(t, ok, "list read under an old generation must not be cached")

	require.NoError(t, c.Set(ctx, current, sampleList()))
	_, _, ok, _ = c.Get(ctx)
	assert.True(t, ok)
}

func TestNewSelectsBackend(t *testing.T) {
	none, err := New(config.Cache{Backend: config.CacheBackendNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	mem, err := New(config.Cache{Backend: config.CacheBackendMemory, TTL: time.Minute}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, mem)

	_, err = New(config.Cache{Backend: config.CacheBackendRedis}, nil)
	assert.Error(t, err)

	_, err = New(config.Cache{Backend: "memcached"}, nil)
	assert.Error(t, err)
}
