package inference

import (
	"context"
	"errors"
	"testing"

	"chat-relay/internal/shared"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticLister struct {
	models []shared.Model
	err    error
	calls  int
}

func (s *staticLister) ListModels(context.Context) ([]shared.Model, error) {
	s.calls++
	return s.models, s.err
}

func TestCatalogWithoutRedis(t *testing.T) {
	src := &staticLister{models: []shared.Model{{ID: "m1", Name: "m1"}}}
	c := NewCatalog(src, nil, zap.NewNop().Sugar())

	models, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, src.models, models)

	_, err = c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCatalogFallsBackWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	src := &staticLister{models: []shared.Model{{ID: "m1", Name: "m1"}}}
	c := NewCatalog(src, rdb, zap.NewNop().Sugar())

	models, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, src.models, models)
	assert.Equal(t, 1, src.calls)
}

func TestCatalogPropagatesSourceError(t *testing.T) {
	boom := errors.New("backend down")
	c := NewCatalog(&staticLister{err: boom}, nil, zap.NewNop().Sugar())

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCatalogKnownUsesSnapshot(t *testing.T) {
	src := &staticLister{models: []shared.Model{{ID: "m1", Name: "m1"}}}
	c := NewCatalog(src, nil, zap.NewNop().Sugar())
	ctx := context.Background()

	assert.True(t, c.Known(ctx, "m1"))
	assert.False(t, c.Known(ctx, "junk"))
	assert.False(t, c.Known(ctx, "junk-2"))
	assert.Equal(t, 1, src.calls)
}

func TestCatalogKnownBacksOffAfterFailure(t *testing.T) {
	src := &staticLister{err: errors.New("backend down")}
	c := NewCatalog(src, nil, zap.NewNop().Sugar())
	ctx := context.Background()

	assert.False(t, c.Known(ctx, "m1"))
	assert.False(t, c.Known(ctx, "m1"))
	assert.Equal(t, 1, src.calls)
}
