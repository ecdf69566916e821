package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheVersioning(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "analytics:sales:7d")
	require.NoError(t, err)
	require.Equal(t, "analytics:sales:7d:v1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "analytics:sales:7d")
	require.NoError(t, err)
	require.Equal(t, "analytics:sales:7d:v2", key)

	ver, err := mr.Get(cacheVersionKey)
	require.NoError(t, err)
	require.Equal(t, "2", ver)
}

func TestFetchJSONStoresWithTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	var got []DailySales
	err := cache.FetchJSON(ctx, "k", &got, func(context.Context) (any, error) {
		return []DailySales{{Date: "2025-01-01", Amount: 3, Quantity: 1}}, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, mr.Exists("k"))
	require.Equal(t, time.Minute, mr.TTL("k"))

	var cached []DailySales
	err = cache.FetchJSON(ctx, "k", &cached, func(context.Context) (any, error) {
		return nil, errors.New("loader must not run on a hit")
	})
	require.NoError(t, err)
	require.Equal(t, got, cached)
}

func TestFetchJSONPropagatesLoaderError(t *testing.T) {
	cache, mr := newTestCache(t)
	var out []DailySales
	err := cache.FetchJSON(context.Background(), "bad", &out, func(context.Context) (any, error) {
		return nil, errors.New("db down")
	})
	require.EqualError(t, err, "db down")
	require.False(t, mr.Exists("bad"))

	require.Error(t, cache.FetchJSON(context.Background(), "bad", &out, nil))
}

func TestFetchJSONCoalescesConcurrentMisses(t *testing.T) {
	cache, _ := newTestCache(t)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out int
			_ = cache.FetchJSON(context.Background(), "shared", &out, func(context.Context) (any, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestBumpPublishesVersion(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	sub := cache.client.Subscribe(ctx, InvalidateChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	select {
	case msg := <-sub.Channel():
		require.Equal(t, "1", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no invalidation message received")
	}
}
