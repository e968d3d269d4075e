package tenant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const selectionKeyPrefix = "tenant:selected:"

// RedisSelectionStore persists each user's active tenant selection in Redis.
// No TTL: the slot survives restarts like the browser storage it replaces,
// with last-write-wins semantics. Only the resolver writes it.
type RedisSelectionStore struct {
	client *redis.Client
}

// NewRedisSelectionStore creates a Redis-backed selection store.
func NewRedisSelectionStore(client *redis.Client) *RedisSelectionStore {
	return &RedisSelectionStore{client: client}
}

func selectionKey(userID uuid.UUID) string {
	return selectionKeyPrefix + userID.String()
}

// Get returns the saved selection, or (nil, nil) when none exists.
func (s *RedisSelectionStore) Get(ctx context.Context, userID uuid.UUID) (*Selection, error) {
	raw, err := s.client.Get(ctx, selectionKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get selection: %w", err)
	}
	var sel Selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		// A corrupt slot is treated as absent rather than wedging resolution.
		return nil, nil
	}
	return &sel, nil
}

// Save stores the selection.
func (s *RedisSelectionStore) Save(ctx context.Context, userID uuid.UUID, sel Selection) error {
	raw, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	if err := s.client.Set(ctx, selectionKey(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	return nil
}
