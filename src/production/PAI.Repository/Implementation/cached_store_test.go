package implementation

import (
	"context"
	"errors"
	"sync"
	"testing"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

type fakeCache struct {
	mu            sync.Mutex
	reading       *models.SensorReading
	err           error
	setErr        error
	invalidateErr error
	gets          int
	sets          int
	fills         int
	invalidates   int
}

func (c *fakeCache) Get(context.Context) (*models.SensorReading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return nil, c.err
	}
	if c.reading == nil {
		return nil, interfaces.ErrNotFound
	}
	r := *c.reading
	return &r, nil
}

func (c *fakeCache) Set(_ context.Context, r models.SensorReading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.err != nil {
		return c.err
	}
	if c.setErr != nil {
		return c.setErr
	}
	c.reading = &r
	return nil
}

func (c *fakeCache) Fill(_ context.Context, r models.SensorReading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fills++
	if c.err != nil {
		return c.err
	}
	if c.setErr != nil {
		return c.setErr
	}
	if c.reading == nil {
		c.reading = &r
	}
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidates++
	if c.err != nil {
		return c.err
	}
	if c.invalidateErr != nil {
		return c.invalidateErr
	}
	c.reading = nil
	return nil
}

func (c *fakeCache) Ping(context.Context) error { return c.err }

func (c *fakeCache) cachedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reading == nil {
		return ""
	}
	return c.reading.ID
}

func (c *fakeCache) setErrors(setErr, invalidateErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErr = setErr
	c.invalidateErr = invalidateErr
}

// pausingStore holds Latest after it has read from the wrapped store until resume is closed
type pausingStore struct {
	*MemoryReadingStore
	read   chan struct{}
	resume chan struct{}
}

func (s *pausingStore) Latest(ctx context.Context) (*models.SensorReading, error) {
	r, err := s.MemoryReadingStore.Latest(ctx)
	close(s.read)
	<-s.resume
	return r, err
}

func TestCachedStoreFillsOnMiss(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}

	// a reading appended before the cache existed
	inner := NewMemoryReadingStore(10)
	if err := inner.Append(ctx, testReading(1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	s := NewCachedReadingStore(inner, cache, nil)

	got, err := s.Latest(ctx)
	if err != nil || got.ID != "reading-1" {
		t.Fatalf("Latest: got %v, %v", got, err)
	}
	if cache.fills != 1 || cache.cachedID() != "reading-1" {
		t.Errorf("cache not filled: fills=%d cached=%q", cache.fills, cache.cachedID())
	}

	// served from cache now
	if _, err := s.Latest(ctx); err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if cache.fills != 1 {
		t.Errorf("fills: got %d, want 1", cache.fills)
	}
}

func TestCachedStoreWritesThrough(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	s := NewCachedReadingStore(NewMemoryReadingStore(10), cache, nil)

	if err := s.Append(ctx, testReading(1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if cache.sets != 1 || cache.cachedID() != "reading-1" {
		t.Errorf("append should update the cache: sets=%d cached=%q", cache.sets, cache.cachedID())
	}
	if cache.invalidates != 0 {
		t.Errorf("invalidates: got %d, want 0", cache.invalidates)
	}
}

func TestCachedStoreNeverServesStale(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	s := NewCachedReadingStore(NewMemoryReadingStore(10), cache, nil)

	for i := 1; i <= 3; i++ {
		if err := s.Append(ctx, testReading(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
		got, err := s.Latest(ctx)
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if got.ID != testReading(i).ID {
			t.Fatalf("after append %d got %s", i, got.ID)
		}
	}
}

func TestCachedStoreCacheOutage(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{err: errors.New("connection refused")}
	s := NewCachedReadingStore(NewMemoryReadingStore(10), cache, nil)

	if err := s.Append(ctx, testReading(1)); err != nil {
		t.Fatalf("Append should ignore cache errors: %v", err)
	}
	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest should fall back to the store: %v", err)
	}
	if got.ID != "reading-1" {
		t.Errorf("got %s", got.ID)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping reports the store only: %v", err)
	}
}

func TestCachedStoreEmpty(t *testing.T) {
	cache := &fakeCache{}
	s := NewCachedReadingStore(NewMemoryReadingStore(10), cache, nil)

	if _, err := s.Latest(context.Background()); !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if cache.sets != 0 {
		t.Errorf("empty log must not be cached")
	}
}

func TestCachedStoreSetFailureInvalidates(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	s := NewCachedReadingStore(NewMemoryReadingStore(10), cache, nil)

	if err := s.Append(ctx, testReading(1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cache.setErrors(errors.New("server busy"), nil)
	if err := s.Append(ctx, testReading(2)); err != nil {
		t.Fatalf("Append should ignore cache errors: %v", err)
	}
	if cache.cachedID() != "" {
		t.Fatalf("stale entry %q left in cache", cache.cachedID())
	}

	cache.setErrors(nil, nil)
	got, err := s.Latest(ctx)
	if err != nil || got.ID != "reading-2" {
		t.Fatalf("Latest: got %v, %v", got, err)
	}
	if cache.cachedID() != "reading-2" {
		t.Errorf("cache not refilled: %q", cache.cachedID())
	}
}

func TestCachedStoreBypassesUnclearableCache(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	s := NewCachedReadingStore(NewMemoryReadingStore(10), cache, nil)

	if err := s.Append(ctx, testReading(1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cache.setErrors(errors.New("server busy"), errors.New("server busy"))
	if err := s.Append(ctx, testReading(2)); err != nil {
		t.Fatalf("Append should ignore cache errors: %v", err)
	}
	if cache.cachedID() != "reading-1" {
		t.Fatalf("setup: cache should still hold reading-1, got %q", cache.cachedID())
	}

	for i := 0; i < 2; i++ {
		got, err := s.Latest(ctx)
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if got.ID != "reading-2" {
			t.Fatalf("stale latest %q", got.ID)
		}
	}

	// once the cache recovers the old entry is overwritten, not kept by an add-only fill
	cache.setErrors(nil, nil)
	if got, err := s.Latest(ctx); err != nil || got.ID != "reading-2" {
		t.Fatalf("Latest: got %v, %v", got, err)
	}
	if cache.cachedID() != "reading-2" {
		t.Fatalf("cache not repaired: %q", cache.cachedID())
	}
	gets := cache.gets
	if got, err := s.Latest(ctx); err != nil || got.ID != "reading-2" {
		t.Fatalf("Latest: got %v, %v", got, err)
	}
	if cache.gets != gets+1 {
		t.Errorf("reads should use the cache again")
	}
}

func TestCachedStoreDropsFillRacingAnAppend(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryReadingStore(10)
	if err := inner.Append(ctx, testReading(1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store := &pausingStore{MemoryReadingStore: inner, read: make(chan struct{}), resume: make(chan struct{})}
	cache := &fakeCache{}
	s := NewCachedReadingStore(store, cache, nil)

	type result struct {
		reading *models.SensorReading
		err     error
	}
	done := make(chan result, 1)
	go func() {
		r, err := s.Latest(ctx)
		done <- result{r, err}
	}()

	<-store.read
	if err := s.Append(ctx, testReading(2)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	close(store.resume)

	res := <-done
	if res.err != nil || res.reading.ID != "reading-1" {
		t.Fatalf("racing Latest: got %v, %v", res.reading, res.err)
	}
	if cache.cachedID() != "reading-2" {
		t.Fatalf("stale fill: cache holds %q", cache.cachedID())
	}
	got, err := s.Latest(ctx)
	if err != nil || got.ID != "reading-2" {
		t.Fatalf("stale latest: got %v, %v", got, err)
	}
}

func TestCachedStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryReadingStore(100)
	cache := &fakeCache{}
	s := NewCachedReadingStore(inner, cache, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := s.Append(ctx, testReading(w*1000+i)); err != nil {
					t.Errorf("Append: %v", err)
				}
				if _, err := s.Latest(ctx); err != nil {
					t.Errorf("Latest: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	snap := inner.Snapshot()
	if len(snap) != 100 {
		t.Fatalf("Len: got %d, want 100", len(snap))
	}
	seen := make(map[string]bool)
	for _, r := range snap {
		if seen[r.ID] {
			t.Fatalf("duplicate reading %s", r.ID)
		}
		seen[r.ID] = true
	}

	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if want := snap[len(snap)-1].ID; got.ID != want {
		t.Errorf("latest: got %s, want %s", got.ID, want)
	}
}
