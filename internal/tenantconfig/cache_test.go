package tenantconfig

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps a Store and counts Get calls, optionally blocking them
// until released.
type countingStore struct {
	Store
	gets    atomic.Int64
	release chan struct{}
}

func (s *countingStore) Get(ctx context.Context, tenantID, key string) (*Entry, error) {
	s.gets.Add(1)
	if s.release != nil {
		<-s.release
	}
	return s.Store.Get(ctx, tenantID, key)
}

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), &Entry{
		TenantID: "acme-corp",
		Key:      "scoped_labels",
		Value:    "Business,Person,Transaction",
	}))
	return store
}

func TestCache_MissThenHit(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{Store: seedStore(t)}
	cache := NewCache(counting, time.Minute)

	e, err := cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	assert.Equal(t, "Business,Person,Transaction", e.Value)
	assert.Equal(t, int64(1), counting.gets.Load())

	// Warm read does not touch the store.
	e2, err := cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	assert.Equal(t, e.Value, e2.Value)
	assert.Equal(t, int64(1), counting.gets.Load())
}

func TestCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{Store: seedStore(t)}
	cache := NewCache(counting, time.Minute)

	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	require.Equal(t, int64(1), counting.gets.Load())

	// Still fresh just inside the TTL.
	now = now.Add(59 * time.Second)
	_, err = cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counting.gets.Load())

	// Expired: the next read reloads.
	now = now.Add(2 * time.Second)
	_, err = cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counting.gets.Load())
}

func TestCache_WriteThroughInvalidation(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	cache := NewCache(store, time.Minute)

	e, err := cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	require.Equal(t, "Business,Person,Transaction", e.Value)

	require.NoError(t, cache.Put(ctx, &Entry{
		TenantID: "acme-corp",
		Key:      "scoped_labels",
		Value:    "Business",
	}))

	// The write landed in the store and the stale cached value is gone.
	e, err = cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	assert.Equal(t, "Business", e.Value)
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(seedStore(t), time.Minute)

	_, err := cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)

	require.NoError(t, cache.Delete(ctx, "acme-corp", "scoped_labels"))

	_, err = cache.Get(ctx, "acme-corp", "scoped_labels")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_NotFoundPassesThrough(t *testing.T) {
	cache := NewCache(NewMemoryStore(), time.Minute)
	_, err := cache.Get(context.Background(), "acme-corp", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_SingleflightCollapsesColdReads(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{Store: seedStore(t), release: make(chan struct{})}
	cache := NewCache(counting, time.Minute)

	const readers = 10
	var wg sync.WaitGroup
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Get(ctx, "acme-corp", "scoped_labels")
		}(i)
	}

	// Let every reader queue up behind the in-flight load, then release it.
	time.Sleep(50 * time.Millisecond)
	close(counting.release)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "reader %d", i)
	}
	assert.Equal(t, int64(1), counting.gets.Load())
}

// stallingStore reads the value, then parks the first read until released,
// modelling a load that raced past a concurrent write.
type stallingStore struct {
	Store
	reads   atomic.Int64
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, tenantID, key string) (*Entry, error) {
	e, err := s.Store.Get(ctx, tenantID, key)
	if s.reads.Add(1) == 1 {
		close(s.entered)
		<-s.release
	}
	return e, err
}

func TestCache_WriteDuringColdReadIsNotShadowed(t *testing.T) {
	ctx := context.Background()
	stalling := &stallingStore{
		Store:   seedStore(t),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	cache := NewCache(stalling, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Get(ctx, "acme-corp", "scoped_labels")
	}()

	// The flight has read the old value and is parked; write through it.
	<-stalling.entered
	require.NoError(t, cache.Put(ctx, &Entry{
		TenantID: "acme-corp",
		Key:      "scoped_labels",
		Value:    "Business",
	}))
	close(stalling.release)
	<-done

	// The flight's pre-write value must not have been re-cached.
	e, err := cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	assert.Equal(t, "Business", e.Value)
	assert.Equal(t, int64(2), stalling.reads.Load())
}

func TestCache_InvalidateTenant(t *testing.T) {
	ctx := context.Background()
	counting := &countingStore{Store: seedStore(t)}
	require.NoError(t, counting.Store.Put(ctx, &Entry{
		TenantID: "acme-corp", Key: "tenant_property", Value: "tenant_id",
	}))
	cache := NewCache(counting, time.Minute)

	_, err := cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	_, err = cache.Get(ctx, "acme-corp", "tenant_property")
	require.NoError(t, err)
	require.Equal(t, int64(2), counting.gets.Load())

	cache.InvalidateTenant("acme-corp")

	_, err = cache.Get(ctx, "acme-corp", "scoped_labels")
	require.NoError(t, err)
	assert.Equal(t, int64(3), counting.gets.Load())
}

func TestMemoryStore_ListOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, k := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.Put(ctx, &Entry{TenantID: "acme-corp", Key: k, Value: "v"}))
	}
	require.NoError(t, store.Put(ctx, &Entry{TenantID: "other", Key: "alpha", Value: "v"}))

	entries, err := store.List(ctx, "acme-corp")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha", entries[0].Key)
	assert.Equal(t, "mid", entries[1].Key)
	assert.Equal(t, "zeta", entries[2].Key)
}

func TestMemoryStore_PutValidates(t *testing.T) {
	store := NewMemoryStore()
	err := store.Put(context.Background(), &Entry{TenantID: "", Key: "k"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}
