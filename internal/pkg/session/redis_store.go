// internal/pkg/session/redis_store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	xerrors "workwise-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RedisArtifactStore keeps one client's persisted auth artifacts in Redis,
// partitioned into the local and session scopes.
type RedisArtifactStore struct {
	client   *redis.Client
	clientID string
}

func NewRedisArtifactStore(client *redis.Client, clientID string) *RedisArtifactStore {
	return &RedisArtifactStore{client: client, clientID: clientID}
}

// Get returns xerrors.ErrNotFound when the key is absent.
func (s *RedisArtifactStore) Get(ctx context.Context, scope ArtifactScope, key string) (string, error) {
	val, err := s.client.Get(ctx, s.artifactKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", xerrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read artifact %s: %w", key, err)
	}
	return val, nil
}

// Set stores value; ttl <= 0 keeps it until cleared.
func (s *RedisArtifactStore) Set(ctx context.Context, scope ArtifactScope, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.artifactKey(scope, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", key, err)
	}
	return nil
}

func (s *RedisArtifactStore) Remove(ctx context.Context, scope ArtifactScope, key string) error {
	if err := s.client.Del(ctx, s.artifactKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("failed to remove artifact %s: %w", key, err)
	}
	return nil
}

// Clear removes every artifact of the client in both scopes. Keys are
// removed one by one; a failure leaves the remaining keys in place.
func (s *RedisArtifactStore) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("artifacts:%s:*", s.clientID)

	var errs []error
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", iter.Val(), err))
		}
	}
	if err := iter.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *RedisArtifactStore) artifactKey(scope ArtifactScope, key string) string {
	return fmt.Sprintf("artifacts:%s:%s:%s", s.clientID, scope, key)
}
