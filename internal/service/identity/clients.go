// internal/service/identity/clients.go
package identity

import (
	"workwise-service/internal/pkg/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Clients hands out the per-client identity adapter together with the
// artifact store it persists into.
type Clients struct {
	svc      *Service
	rdb      *redis.Client
	tokenKey string
	logger   *zap.Logger
}

func NewClients(svc *Service, rdb *redis.Client, tokenKey string, logger *zap.Logger) *Clients {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clients{svc: svc, rdb: rdb, tokenKey: tokenKey, logger: logger}
}

func (f *Clients) For(clientID string) (*Client, *session.RedisArtifactStore) {
	artifacts := session.NewRedisArtifactStore(f.rdb, clientID)
	return NewClient(f.svc, artifacts, clientID, f.tokenKey, f.logger), artifacts
}

// Dependencies assembles what a session manager for clientID needs.
func (f *Clients) Dependencies(clientID string, profiles session.ProfileStore, nav session.Navigator) session.Dependencies {
	c, artifacts := f.For(clientID)
	return session.Dependencies{
		Identity:  c,
		Profiles:  profiles,
		Artifacts: artifacts,
		Navigator: nav,
	}
}
