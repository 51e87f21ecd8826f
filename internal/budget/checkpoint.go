package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisCheckpointer stores credential usage as one JSON blob per source
// under a shared key prefix.
type RedisCheckpointer struct {
	client *redis.Client
	prefix string
}

func NewRedisCheckpointer(client *redis.Client, prefix string) *RedisCheckpointer {
	if prefix == "" {
		prefix = "jobscout:budget"
	}
	return &RedisCheckpointer{client: client, prefix: prefix}
}

func (r *RedisCheckpointer) key(source string) string {
	return fmt.Sprintf("%s:%s", r.prefix, source)
}

func (r *RedisCheckpointer) Load(ctx context.Context, source string) (map[string]State, error) {
	raw, err := r.client.Get(ctx, r.key(source)).Bytes()
	if err == redis.Nil {
		return map[string]State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load budget checkpoint: %w", err)
	}
	states := make(map[string]State)
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, fmt.Errorf("decode budget checkpoint: %w", err)
	}
	return states, nil
}

func (r *RedisCheckpointer) Save(ctx context.Context, source string, states map[string]State) error {
	raw, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("encode budget checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, r.key(source), raw, 0).Err(); err != nil {
		return fmt.Errorf("save budget checkpoint: %w", err)
	}
	return nil
}

// MemoryCheckpointer keeps checkpoints in the process. Used in tests and
// when no redis address is configured.
type MemoryCheckpointer struct {
	mu     sync.Mutex
	states map[string]map[string]State
}

func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{states: make(map[string]map[string]State)}
}

func (m *MemoryCheckpointer) Load(_ context.Context, source string) (map[string]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]State, len(m.states[source]))
	for k, v := range m.states[source] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryCheckpointer) Save(_ context.Context, source string, states map[string]State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]State, len(states))
	for k, v := range states {
		copied[k] = v
	}
	m.states[source] = copied
	return nil
}
