// Package cache holds the optional GET /employees response cache. Every
// successful insert bumps the cache generation and drops the entry; a list
// read under an older generation is discarded instead of stored.
package cache

import (
	"fmt"
	"time"

	"registro/internal/platform/config"
	"registro/internal/platform/redis"
	"registro/internal/registration/models"
	"registro/internal/registration/ports"
	id "registro/pkg/domain"
)

const (
	listKey = "registro:employees:list"
	genKey  = "registro:employees:gen"
)

// New picks the backend named by cfg. It returns nil for the none backend;
// callers treat a nil ports.ListCache as "no caching".
func New(cfg config.Cache, client *redis.Client) (ports.ListCache, error) {
	switch cfg.Backend {
	case config.CacheBackendNone, "":
		return nil, nil
	case config.CacheBackendMemory:
		return NewMemory(cfg.TTL), nil
	case config.CacheBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("redis cache backend requires a redis client")
		}
		return NewRedis(client.Client, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

type record struct {
	ID        id.RegistrationID `json:"uuid"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	CreatedAt time.Time         `json:"created_at"`
}

func toRecords(regs []*models.Registration) []record {
	out := make([]record, len(regs))
	for i, reg := range regs {
		out[i] = record{ID: reg.ID, Name: reg.Name, Email: reg.Email, Phone: reg.Phone, CreatedAt: reg.CreatedAt}
	}
	return out
}

func fromRecords(recs []record) []*models.Registration {
	out := make([]*models.Registration, len(recs))
	for i, rec := range recs {
		out[i] = &models.Registration{ID: rec.ID, Name: rec.Name, Email: rec.Email, Phone: rec.Phone, CreatedAt: rec.CreatedAt}
	}
	return out
}
