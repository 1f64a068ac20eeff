// internal/service/identity/registry.go
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"workwise-service/internal/domain/auth"
	xerrors "workwise-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// Registry tracks live sessions in Redis. A token is only accepted while its
// session key exists.
type Registry struct {
	client *redis.Client
}

func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client}
}

type sessionRecord struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ClientID  string    `json:"client_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register stores the session until it expires
func (r *Registry) Register(ctx context.Context, s *auth.Session, clientID string) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return xerrors.ErrSessionExpired
	}

	data, err := json.Marshal(sessionRecord{
		UserID:    s.UserID,
		Email:     s.Email,
		ClientID:  clientID,
		IssuedAt:  s.IssuedAt,
		ExpiresAt: s.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(s.UserID, s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	return nil
}

// Exists reports whether the session has not been revoked
func (r *Registry) Exists(ctx context.Context, userID, jti string) (bool, error) {
	_, err := r.client.Get(ctx, sessionKey(userID, jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read session: %w", err)
	}
	return true, nil
}

// Revoke removes a single session
func (r *Registry) Revoke(ctx context.Context, userID, jti string) error {
	if err := r.client.Del(ctx, sessionKey(userID, jti)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAll removes every session of the user and returns how many were live.
func (r *Registry) RevokeAll(ctx context.Context, userID string) (int, error) {
	pattern := fmt.Sprintf("session:%s:*", userID)

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return int(n), nil
}

func sessionKey(userID, jti string) string {
	return fmt.Sprintf("session:%s:%s", userID, jti)
}
