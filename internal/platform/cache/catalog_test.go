package cache

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

type entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newRedisCatalog(t *testing.T) (*Catalog, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCatalog(NewRedisStore(client), time.Minute, nil), mr
}

func TestFetchJSONCachesInRedis(t *testing.T) {
	catalog, mr := newRedisCatalog(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []entry{{ID: 1, Name: "ADMIN"}}, nil
	}

	var first []entry
	require.NoError(t, catalog.FetchJSON(ctx, catalog.Key("roles"), &first, loader))
	var second []entry
	require.NoError(t, catalog.FetchJSON(ctx, catalog.Key("roles"), &second, loader))

	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
	require.True(t, mr.Exists("console:catalog:roles"))
	require.Equal(t, time.Minute, mr.TTL("console:catalog:roles"))
}

func TestFetchJSONInvalidate(t *testing.T) {
	catalog, _ := newRedisCatalog(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []entry{{ID: int64(calls)}}, nil
	}
	var out []entry
	require.NoError(t, catalog.FetchJSON(ctx, catalog.Key("permissions"), &out, loader))
	require.NoError(t, catalog.Invalidate(ctx, catalog.Key("permissions")))
	require.NoError(t, catalog.FetchJSON(ctx, catalog.Key("permissions"), &out, loader))
	require.Equal(t, 2, calls)
	require.Equal(t, int64(2), out[0].ID)
}

func TestFetchJSONFallsBackWhenRedisDown(t *testing.T) {
	catalog, mr := newRedisCatalog(t)
	mr.Close()
	var out []entry
	err := catalog.FetchJSON(context.Background(), catalog.Key("roles"), &out, func(context.Context) (any, error) {
		return []entry{{ID: 7}}, nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), out[0].ID)
}

func TestFetchJSONLoaderErrorNotCached(t *testing.T) {
	catalog := NewCatalog(NewMemoryStore(time.Minute), time.Minute, nil)
	boom := errors.New("boom")
	var out []entry
	err := catalog.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, err = catalog.store.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", []byte("1"), 10*time.Millisecond))
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
	time.Sleep(20 * time.Millisecond)
	_, err = store.Get(ctx, "a")
	require.ErrorIs(t, err, ErrMiss)
}

func TestNilCatalogLoadsDirectly(t *testing.T) {
	var catalog *Catalog
	var out entry
	err := catalog.FetchJSON(context.Background(), catalog.Key("x"), &out, func(context.Context) (any, error) {
		return entry{ID: 3}, nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), out.ID)
}

func TestFetchJSONConcurrentMissesShareOneLoad(t *testing.T) {
	catalog, _ := newRedisCatalog(t)
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		<-release
		return []entry{{ID: 1, Name: "PERM_1"}}, nil
	}

	var wg sync.WaitGroup
	results := make([][]entry, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = catalog.FetchJSON(ctx, catalog.Key("permissions"), &results[i], loader)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for i, got := range results {
		require.NoError(t, errs[i])
		require.Equal(t, []entry{{ID: 1, Name: "PERM_1"}}, got)
	}
}

func TestFetchJSONCallerCancellationKeepsSharedLoad(t *testing.T) {
	catalog := NewCatalog(NewMemoryStore(time.Minute), time.Minute, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	loader := func(context.Context) (any, error) {
		close(started)
		<-release
		return entry{ID: 9}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		var out entry
		errCh <- catalog.FetchJSON(ctx, "k", &out, loader)
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, err := catalog.store.Get(context.Background(), "k")
		return err == nil
	}, time.Second, 10*time.Millisecond)
}
