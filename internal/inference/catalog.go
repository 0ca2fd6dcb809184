package inference

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"chat-relay/internal/metrics"
	"chat-relay/internal/shared"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type ModelLister interface {
	ListModels(ctx context.Context) ([]shared.Model, error)
}

// Catalog serves the model list for the browser's model picker, cached in
// redis when a client is configured.
type Catalog struct {
	source ModelLister
	redis  *redis.Client
	ttl    time.Duration
	log    *zap.SugaredLogger

	// in process snapshot of model ids for Known
	mu      sync.Mutex
	known   map[string]struct{}
	expires time.Time
}

// NewCatalog builds a catalog. redisClient may be nil, in which case every
// call goes to the backend.
func NewCatalog(source ModelLister, redisClient *redis.Client, log *zap.SugaredLogger) *Catalog {
	return &Catalog{
		source: source,
		redis:  redisClient,
		ttl:    shared.ModelCatalogCacheTTL,
		log:    log,
	}
}

func (c *Catalog) List(ctx context.Context) ([]shared.Model, error) {
	if c.redis == nil {
		models, err := c.source.ListModels(ctx)
		if err == nil {
			c.remember(models)
		}
		return models, err
	}

	cached, err := c.redis.Get(ctx, shared.ModelCatalogCacheKey).Result()
	switch {
	case err == nil:
		var models []shared.Model
		uerr := json.Unmarshal([]byte(cached), &models)
		if uerr == nil {
			metrics.ModelCatalogCache.WithLabelValues("hit").Inc()
			c.remember(models)
			return models, nil
		}
		c.log.Errorw("Error unmarshalling model catalog cache", "error", uerr)
	case errors.Is(err, redis.Nil):
		c.log.Debugw("Model catalog cache miss", "key", shared.ModelCatalogCacheKey)
	default:
		c.log.Warnw("Model catalog cache unavailable", "error", err)
	}
	metrics.ModelCatalogCache.WithLabelValues("miss").Inc()

	models, err := c.source.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	c.remember(models)

	go func() {
		payload, err := json.Marshal(models)
		if err != nil {
			c.log.Errorw("Error marshalling model catalog", "error", err)
			return
		}
		setCtx, cancel := context.WithTimeout(context.Background(), shared.DefaultModelListTimeout)
		defer cancel()
		if err := c.redis.Set(setCtx, shared.ModelCatalogCacheKey, payload, c.ttl).Err(); err != nil {
			c.log.Warnw("Failed caching model catalog", "error", err)
		}
	}()
	return models, nil
}

// Known reports whether model is in the catalog. Lookups are served from
// memory until the snapshot expires; a failed refresh keeps the previous
// snapshot and is retried after ModelCatalogRetryDelay.
func (c *Catalog) Known(ctx context.Context, model string) bool {
	c.mu.Lock()
	if time.Now().Before(c.expires) {
		_, ok := c.known[model]
		c.mu.Unlock()
		return ok
	}
	c.mu.Unlock()

	if _, err := c.List(ctx); err != nil {
		c.log.Warnw("Failed refreshing model catalog", "error", err)
		c.mu.Lock()
		c.expires = time.Now().Add(shared.ModelCatalogRetryDelay)
		c.mu.Unlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.known[model]
	return ok
}

func (c *Catalog) remember(models []shared.Model) {
	known := make(map[string]struct{}, len(models))
	for _, m := range models {
		known[m.ID] = struct{}{}
	}
	c.mu.Lock()
	c.known = known
	c.expires = time.Now().Add(c.ttl)
	c.mu.Unlock()
}
