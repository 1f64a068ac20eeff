package session

import (
	"context"
	"testing"
	"time"

	xerrors "workwise-service/internal/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestArtifactStoreScopes(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisArtifactStore(client, "c1")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ArtifactLocal, DefaultTokenKey, "local-token", 0))
	require.NoError(t, store.Set(ctx, ArtifactSession, DefaultTokenKey, "session-token", 0))

	v, err := store.Get(ctx, ArtifactLocal, DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "local-token", v)

	require.NoError(t, store.Remove(ctx, ArtifactLocal, DefaultTokenKey))
	_, err = store.Get(ctx, ArtifactLocal, DefaultTokenKey)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	v, err = store.Get(ctx, ArtifactSession, DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "session-token", v)
}

func TestArtifactStoreClearIsPerClient(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	mine := NewRedisArtifactStore(client, "c1")
	theirs := NewRedisArtifactStore(client, "c2")

	require.NoError(t, mine.Set(ctx, ArtifactLocal, "a", "1", 0))
	require.NoError(t, mine.Set(ctx, ArtifactSession, "b", "2", 0))
	require.NoError(t, theirs.Set(ctx, ArtifactLocal, "a", "3", 0))

	require.NoError(t, mine.Clear(ctx))

	_, err := mine.Get(ctx, ArtifactLocal, "a")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	_, err = mine.Get(ctx, ArtifactSession, "b")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	v, err := theirs.Get(ctx, ArtifactLocal, "a")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestArtifactStoreTTL(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisArtifactStore(client, "c1")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ArtifactLocal, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, ArtifactLocal, "k")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestArtifactStoreFailuresSurface(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisArtifactStore(client, "c1")
	mr.Close()

	assert.Error(t, store.Clear(context.Background()))
	assert.Error(t, store.Remove(context.Background(), ArtifactLocal, "k"))
}
