package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror stores presence snapshots in Redis under prefix+userID.
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Mirror = (*RedisMirror)(nil)

// NewRedisMirror creates a mirror over an existing client.
func NewRedisMirror(client *redis.Client, prefix string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Publish writes the snapshot with the mirror TTL.
func (r *RedisMirror) Publish(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("presence marshal error: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+s.UserID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("presence set error: %w", err)
	}
	return nil
}

// Get reads a snapshot. The bool is false when the key does not exist.
func (r *RedisMirror) Get(ctx context.Context, userID string) (Snapshot, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("presence get error: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, false, fmt.Errorf("presence unmarshal error: %w", err)
	}
	return s, true, nil
}

// Ping checks if the Redis connection is healthy.
func (r *RedisMirror) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (r *RedisMirror) Close() error {
	return r.client.Close()
}
