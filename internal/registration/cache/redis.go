package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"registro/internal/registration/models"
)

// setIfGeneration writes the list only while the generation key still holds
// the value the caller read before going to storage.
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// Redis caches the list as one JSON value so every instance sees the same
// invalidation. The generation lives in its own key without a TTL.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis builds a cache over client whose entries expire after ttl.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context) ([]*models.Registration, uint64, bool, error) {
	vals, err := r.client.MGet(ctx, listKey, genKey).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("redis get list: %w", err)
	}
	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, false, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false, nil
	}
	var recs []record
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		return nil, 0, false, fmt.Errorf("decode cached list: %w", err)
	}
	return fromRecords(recs), gen, true, nil
}

// Set is a no-op when an Invalidate has happened since gen was read.
func (r *Redis) Set(ctx context.Context, gen uint64, regs []*models.Registration) error {
	raw, err := json.Marshal(toRecords(regs))
	if err != nil {
		return fmt.Errorf("encode list: %w", err)
	}
	args := []any{strconv.FormatUint(gen, 10), raw, r.ttl.Milliseconds()}
	if err := setIfGeneration.Run(ctx, r.client, []string{listKey, genKey}, args...).Err(); err != nil {
		return fmt.Errorf("redis set list: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, listKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate list: %w", err)
	}
	return nil
}

func parseGeneration(v any) (uint64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode list generation %q: %w", s, err)
	}
	return gen, nil
}
