package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const cacheTracer = "plantai-cache"

var _ interfaces.LatestCache = (*MemcachedLatestCache)(nil)

// MemcachedLatestCache stores the latest reading under a single key
type MemcachedLatestCache struct {
	client  *memcache.Client
	key     string
	ttl     time.Duration
	metrics *CacheMetrics
}

func NewMemcachedLatestCache(addr, key string, ttl time.Duration) *MemcachedLatestCache {
	client := memcache.New(addr)
	client.Timeout = 100 * time.Millisecond
	return &MemcachedLatestCache{
		client:  client,
		key:     key,
		ttl:     ttl,
		metrics: NewCacheMetrics("memcached"),
	}
}

func (m *MemcachedLatestCache) Get(ctx context.Context) (*models.SensorReading, error) {
	_, span := otel.Tracer(cacheTracer).Start(ctx, "cache.GetLatest")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.driver", "memcached"),
		attribute.String("cache.key", m.key),
	)

	start := time.Now()
	item, err := m.client.Get(m.key)
	switch {
	case errors.Is(err, memcache.ErrCacheMiss):
		m.metrics.RecordMiss()
		span.SetAttributes(attribute.String("cache.result", "miss"))
		span.SetStatus(codes.Ok, "")
		return nil, interfaces.ErrNotFound
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("cache fetch: %w", err)
	}

	var reading models.SensorReading
	if err := json.Unmarshal(item.Value, &reading); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("cache decode: %w", err)
	}

	m.metrics.RecordHit(start)
	span.SetAttributes(attribute.String("cache.result", "hit"))
	span.SetStatus(codes.Ok, "")
	return &reading, nil
}

func (m *MemcachedLatestCache) Set(ctx context.Context, reading models.SensorReading) error {
	return m.store(ctx, "cache.SetLatest", reading, m.client.Set)
}

// Fill uses memcache add, so a reading written by Set in the meantime wins
func (m *MemcachedLatestCache) Fill(ctx context.Context, reading models.SensorReading) error {
	err := m.store(ctx, "cache.FillLatest", reading, m.client.Add)
	if errors.Is(err, memcache.ErrNotStored) {
		return nil
	}
	return err
}

func (m *MemcachedLatestCache) store(ctx context.Context, spanName string, reading models.SensorReading, write func(*memcache.Item) error) error {
	_, span := otel.Tracer(cacheTracer).Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.driver", "memcached"),
		attribute.String("cache.key", m.key),
		attribute.Int64("cache.ttl", int64(m.ttl.Seconds())),
	)

	b, err := json.Marshal(reading)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	start := time.Now()
	if err := write(&memcache.Item{Key: m.key, Value: b, Expiration: int32(m.ttl.Seconds())}); err != nil {
		if errors.Is(err, memcache.ErrNotStored) {
			span.SetAttributes(attribute.String("cache.result", "not_stored"))
			span.SetStatus(codes.Ok, "")
			return err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to store reading: %w", err)
	}
	m.metrics.RecordWrite(start)
	span.SetStatus(codes.Ok, "")
	return nil
}

func (m *MemcachedLatestCache) Invalidate(ctx context.Context) error {
	err := m.client.Delete(m.key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (m *MemcachedLatestCache) Ping(ctx context.Context) error {
	return m.client.Ping()
}

func (m *MemcachedLatestCache) Close() error {
	return m.client.Close()
}
