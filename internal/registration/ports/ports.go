// Package ports declares what the registration service needs from the
// outside world. Adapters live in store, cache, notify and hostaddr.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Store,StoreProvider,Sender,HostResolver,ListCache

import (
	"context"

	"registro/internal/notify"
	"registro/internal/registration/models"
)

// Store is a request-scoped storage session. It owns one connection and must
// be closed by whoever acquired it.
type Store interface {
	// Create inserts reg inside a transaction and sets reg.CreatedAt.
	// A duplicate ID yields sentinel.ErrConflict.
	Create(ctx context.Context, reg *models.Registration) error
	// List returns every record ordered by creation time, oldest first.
	List(ctx context.Context) ([]*models.Registration, error)
	Close() error
}

// StoreProvider hands out Store sessions.
type StoreProvider interface {
	Acquire(ctx context.Context) (Store, error)
}

// Sender delivers one notification over one channel.
type Sender interface {
	Channel() notify.Channel
	Send(ctx context.Context, msg notify.Message) error
}

// HostResolver reports the address of the instance handling the request.
type HostResolver interface {
	Resolve(ctx context.Context) string
}

// ListCache holds the full list response. ok is false on a miss.
//
// Get also returns the cache generation. Set stores regs only while the
// generation is still gen, so a list read from storage before an Invalidate
// can never be written back after it.
type ListCache interface {
	Get(ctx context.Context) (regs []*models.Registration, gen uint64, ok bool, err error)
	Set(ctx context.Context, gen uint64, regs []*models.Registration) error
	Invalidate(ctx context.Context) error
}
