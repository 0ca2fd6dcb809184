// Package usage aggregates per model relay stats and periodically flushes
// them to the database
package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-relay/internal/database"
	"chat-relay/internal/metrics"
	"chat-relay/internal/shared"

	"go.uber.org/zap"
)

type Store interface {
	SaveDailyStats(ctx context.Context, stats []*database.DailyStats) error
}

// Record is the outcome of one chat relay.
type Record struct {
	Model            string
	Completed        bool
	Canceled         bool
	Attempts         int
	Chunks           int
	TimeToFirstToken time.Duration
	TotalTime        time.Duration
	At               time.Time
}

type Cache struct {
	mu      sync.Mutex
	buckets map[string]*database.DailyStats
	timer   *time.Timer

	store      Store
	log        *zap.SugaredLogger
	interval   time.Duration
	retryDelay time.Duration
}

func NewCache(log *zap.SugaredLogger, store Store) *Cache {
	return &Cache{
		buckets:    map[string]*database.DailyStats{},
		store:      store,
		log:        log,
		interval:   shared.UsageFlushInterval,
		retryDelay: shared.UsageRetryDelay,
	}
}

func (c *Cache) Record(r Record) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	date := r.At.UTC().Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()

	key := date + "|" + r.Model
	b, ok := c.buckets[key]
	if !ok {
		b = &database.DailyStats{Date: date, Model: r.Model}
		c.buckets[key] = b
	}
	b.RequestCount++
	switch {
	case r.Completed:
		b.CompletedCount++
	case r.Canceled:
		b.CanceledCount++
	default:
		b.FailedCount++
	}
	b.Attempts += uint64(r.Attempts)
	b.Chunks += uint64(r.Chunks)
	b.TimeToFirstToken += r.TimeToFirstToken.Milliseconds()
	b.TotalTime += r.TotalTime.Milliseconds()

	// fresh window, schedule a flush
	if c.timer == nil {
		c.timer = time.AfterFunc(c.interval, func() {
			_ = c.Flush(context.Background())
		})
	}
}

// Flush hands everything aggregated so far to the store, retrying up to
// MaxFlushRetries times. Stats from a flush that keeps failing are dropped.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	pending := c.buckets
	c.buckets = map[string]*database.DailyStats{}
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	stats := make([]*database.DailyStats, 0, len(pending))
	for _, s := range pending {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Date != stats[j].Date {
			return stats[i].Date < stats[j].Date
		}
		return stats[i].Model < stats[j].Model
	})

	var err error
	for attempt := range shared.MaxFlushRetries {
		if attempt > 0 {
			time.Sleep(c.retryDelay)
		}
		err = c.store.SaveDailyStats(ctx, stats)
		if err == nil {
			c.log.Infow("Flushed usage", "models", len(stats))
			return nil
		}
		c.log.Errorw("Failed to save usage", "error", err, "attempt", attempt+1)
	}
	c.log.Errorw("Dropping usage after retries", "error", err, "retries", shared.MaxFlushRetries, "models", len(stats))
	metrics.ErrorCount.WithLabelValues("unknown", "save_usage").Inc()
	return err
}

func (c *Cache) Shutdown() {
	c.log.Info("Shutting down usage cache")
	_ = c.Flush(context.Background())
}
