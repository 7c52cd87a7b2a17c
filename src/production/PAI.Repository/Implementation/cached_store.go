package implementation

import (
	"context"
	"errors"
	"sync"

	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

var _ interfaces.ReadingStore = (*CachedReadingStore)(nil)

// CachedReadingStore serves Latest from a LatestCache when it can.
// Appends write through to the cache; when the cache cannot be brought up to
// date, reads bypass it until a fill succeeds. Cache failures never reach the caller.
type CachedReadingStore struct {
	store  interfaces.ReadingStore
	cache  interfaces.LatestCache
	logger *logger.Logger

	mu sync.Mutex
	// generation counts appends; a read-miss fill is dropped if an append landed meanwhile
	generation uint64
	// bypass is set while the cache may hold a reading older than the store's
	bypass bool
}

func NewCachedReadingStore(store interfaces.ReadingStore, cache interfaces.LatestCache, log *logger.Logger) *CachedReadingStore {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedReadingStore{store: store, cache: cache, logger: log.WithComponent("latest_cache")}
}

func (c *CachedReadingStore) Append(ctx context.Context, reading models.SensorReading) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Append(ctx, reading); err != nil {
		return err
	}
	c.generation++

	setErr := c.cache.Set(ctx, reading)
	if setErr == nil {
		c.bypass = false
		return nil
	}
	if err := c.cache.Invalidate(ctx); err != nil {
		c.logger.Warn().Err(errors.Join(setErr, err)).Msg("Latest reading cache is stale, bypassing it until the next fill")
		c.bypass = true
		return nil
	}
	c.logger.Warn().Err(setErr).Msg("Failed to update latest reading cache, entry invalidated")
	c.bypass = false
	return nil
}

func (c *CachedReadingStore) Latest(ctx context.Context) (*models.SensorReading, error) {
	c.mu.Lock()
	generation, bypass := c.generation, c.bypass
	c.mu.Unlock()

	if !bypass {
		cached, err := c.cache.Get(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("Latest reading cache unavailable, reading from store")
		}
	}

	reading, err := c.store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return reading, nil
	}

	fill := c.cache.Fill
	if c.bypass {
		// the entry may be older than reading, so add-only is not enough
		fill = c.cache.Set
	}
	if err := fill(ctx, *reading); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to fill latest reading cache")
		return reading, nil
	}
	c.bypass = false
	return reading, nil
}

// Ping reports only the store; a cache outage degrades latency, not correctness
func (c *CachedReadingStore) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *CachedReadingStore) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}
