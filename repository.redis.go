// repository.redis.go

package talestoken

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked:token:"

// RedisRevocationStore is a Redis-backed implementation of RevocationStore,
// for deployments where many service instances share revocation state.
// Entries expire with the token itself via Redis TTLs.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore creates a new Redis-based revocation store and
// verifies the connection.
func NewRedisRevocationStore(client *redis.Client) (*RedisRevocationStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisRevocationStore{client: client}, nil
}

// Revoke marks a token id as revoked by storing its hash with a TTL.
func (r *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return fmt.Errorf("token id cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	key := revokedKeyPrefix + hashTokenID(tokenID)
	return r.client.Set(ctx, key, "1", ttl).Err()
}

// IsRevoked checks whether a token id has been revoked.
func (r *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, fmt.Errorf("token id cannot be empty")
	}

	key := revokedKeyPrefix + hashTokenID(tokenID)
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return count > 0, nil
}
