package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	authkit "github.com/pulsefit/authkit-go"
)

// Redis persists the token pair as two keys in Redis, written and cleared
// atomically via a transaction pipeline. Suited to clients that already run
// against a Redis instance and want the pair to survive restarts.
type Redis struct {
	client     redis.UniversalClient
	accessKey  string
	refreshKey string
}

// compile-time check
var _ authkit.TokenStore = (*Redis)(nil)

// NewRedis creates a Redis-backed store. prefix namespaces the two keys,
// e.g. "authkit:session:" yields "authkit:session:access_token" and
// "authkit:session:refresh_token".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		client:     client,
		accessKey:  prefix + "access_token",
		refreshKey: prefix + "refresh_token",
	}
}

// Save replaces both tokens in one transaction.
func (r *Redis) Save(ctx context.Context, pair authkit.TokenPair) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.accessKey, pair.AccessToken, 0)
	pipe.Set(ctx, r.refreshKey, pair.RefreshToken, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: redis save: %w", err)
	}
	return nil
}

// Load returns the stored pair, or (nil, nil) when neither key exists.
func (r *Redis) Load(ctx context.Context) (*authkit.TokenPair, error) {
	vals, err := r.client.MGet(ctx, r.accessKey, r.refreshKey).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis load: %w", err)
	}
	if vals[0] == nil && vals[1] == nil {
		return nil, nil
	}

	var pair authkit.TokenPair
	if s, ok := vals[0].(string); ok {
		pair.AccessToken = s
	}
	if s, ok := vals[1].(string); ok {
		pair.RefreshToken = s
	}
	return &pair, nil
}

// Clear deletes both keys together.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.accessKey, r.refreshKey).Err(); err != nil {
		return fmt.Errorf("store: redis clear: %w", err)
	}
	return nil
}
