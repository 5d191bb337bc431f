package loadcache_test

import (
	"context"
	"errors"
	"github.com/benbjohnson/clock"
	"github.com/magic-lib/go-plat-guildcache/cache"
	loadcache "github.com/magic-lib/go-plat-guildcache/cache/load-cache"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errMissing = errors.New("missing")

type countingFetcher struct {
	mu      sync.Mutex
	calls   atomic.Int32
	release chan struct{}
	values  map[string]string
	err     error
}

func (f *countingFetcher) Fetch(ctx context.Context, key string) (string, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", errMissing
	}
	return v, nil
}

func (f *countingFetcher) set(key, val string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = val
}

func newLoader(t *testing.T, f loadcache.Fetcher[string, string], opts loadcache.Options) (*clock.Mock, *loadcache.Loader[string, string]) {
	t.Helper()
	mock := clock.NewMock()
	store := cache.NewStore[string, string](cache.WithClock(mock))
	l, err := loadcache.New[string, string](store, f, opts)
	require.NoError(t, err)
	return mock, l
}

func TestLoaderHitAndMiss(t *testing.T) {
	f := &countingFetcher{values: map[string]string{"Avos": `{"online":3}`}}
	m := loadcache.NewMetrics("test")
	mock, l := newLoader(t, f, loadcache.Options{FreshFor: 60 * time.Second, Metrics: m})

	v, err := l.Get(context.Background(), "Avos")
	require.NoError(t, err)
	assert.Equal(t, `{"online":3}`, v)
	assert.EqualValues(t, 1, f.calls.Load())

	mock.Add(59 * time.Second)
	v, err = l.Get(context.Background(), "Avos")
	require.NoError(t, err)
	assert.Equal(t, `{"online":3}`, v)
	assert.EqualValues(t, 1, f.calls.Load(), "fresh entry must be served from cache")

	mock.Add(time.Second)
	_, err = l.Get(context.Background(), "Avos")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load(), "entry at FreshFor age must be refetched")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Hits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Misses))
}

func TestLoaderPeekAndRefresh(t *testing.T) {
	f := &countingFetcher{values: map[string]string{"a": "1"}}
	mock, l := newLoader(t, f, loadcache.Options{})

	_, ok := l.Peek("a", time.Minute)
	assert.False(t, ok)
	assert.Zero(t, f.calls.Load(), "peek must not fetch")

	_, err := l.Refresh(context.Background(), "a")
	require.NoError(t, err)
	mock.Add(30 * time.Second)

	v, ok := l.Peek("a", time.Minute)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = l.Peek("a", 30*time.Second)
	assert.False(t, ok)

	_, err = l.Refresh(context.Background(), "a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestLoaderSingleflight(t *testing.T) {
	f := &countingFetcher{
		values:  map[string]string{"a": "1"},
		release: make(chan struct{}),
	}
	_, l := newLoader(t, f, loadcache.Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background(), "a")
			assert.NoError(t, err)
			assert.Equal(t, "1", v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
}

func TestLoaderNegativeCache(t *testing.T) {
	f := &countingFetcher{values: map[string]string{}}
	m := loadcache.NewMetrics("test")
	_, l := newLoader(t, f, loadcache.Options{
		NegativeTTL: time.Minute,
		ErrNotFound: errMissing,
		Metrics:     m,
	})

	for i := 0; i < 3; i++ {
		_, err := l.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, errMissing)
	}
	assert.EqualValues(t, 1, f.calls.Load())
	assert.Zero(t, l.Store().Len(), "not found results must not be cached as values")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotFound))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.UpstreamErrors))
}

func TestLoaderUpstreamError(t *testing.T) {
	boom := errors.New("boom")
	f := &countingFetcher{err: boom}
	m := loadcache.NewMetrics("test")
	_, l := newLoader(t, f, loadcache.Options{ErrNotFound: errMissing, NegativeTTL: time.Minute, Metrics: m})

	_, err := l.Get(context.Background(), "a")
	assert.ErrorIs(t, err, boom)
	_, err = l.Get(context.Background(), "a")
	assert.ErrorIs(t, err, boom)

	assert.EqualValues(t, 2, f.calls.Load(), "upstream errors are not negative cached")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.UpstreamErrors))
	assert.Zero(t, l.Store().Len())
}

func TestLoaderFetcherFunc(t *testing.T) {
	store := cache.NewStore[int, string]()
	l, err := loadcache.New[int, string](store, loadcache.FetcherFunc[int, string](func(_ context.Context, k int) (string, error) {
		return "v", nil
	}), loadcache.Options{})
	require.NoError(t, err)

	v, err := l.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, store.Len())

	_, err = loadcache.New[int, string](nil, nil, loadcache.Options{})
	assert.Error(t, err)
}

func TestLoaderCallerCancelDoesNotFailOthers(t *testing.T) {
	f := &countingFetcher{
		values:  map[string]string{"a": "1"},
		release: make(chan struct{}),
	}
	_, l := newLoader(t, f, loadcache.Options{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := l.Get(ctxA, "a")
		errA <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		v   string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := l.Get(context.Background(), "a")
		resB <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(f.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "1", b.v)
	assert.EqualValues(t, 1, f.calls.Load())

	v, ok := l.Peek("a", time.Minute)
	assert.True(t, ok, "fetch finished after the first caller left must still be cached")
	assert.Equal(t, "1", v)
}

func TestLoaderFetchTimeout(t *testing.T) {
	f := &countingFetcher{
		values:  map[string]string{"a": "1"},
		release: make(chan struct{}),
	}
	defer close(f.release)
	_, l := newLoader(t, f, loadcache.Options{FetchTimeout: 20 * time.Millisecond})

	_, err := l.Get(context.Background(), "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoaderRefreshBypassesNegativeCache(t *testing.T) {
	f := &countingFetcher{values: map[string]string{}}
	_, l := newLoader(t, f, loadcache.Options{
		NegativeTTL: time.Minute,
		ErrNotFound: errMissing,
	})

	_, err := l.Get(context.Background(), "late")
	require.ErrorIs(t, err, errMissing)
	f.set("late", "arrived")

	_, err = l.Get(context.Background(), "late")
	assert.ErrorIs(t, err, errMissing, "get still honours the negative cache")
	assert.EqualValues(t, 1, f.calls.Load())

	v, err := l.Refresh(context.Background(), "late")
	require.NoError(t, err)
	assert.Equal(t, "arrived", v)
	assert.EqualValues(t, 2, f.calls.Load())

	// 刷新成功后负缓存被清除，条目消失后 Get 会重新回源
	l.Store().Delete("late")
	v, err = l.Get(context.Background(), "late")
	require.NoError(t, err)
	assert.Equal(t, "arrived", v)
	assert.EqualValues(t, 3, f.calls.Load())
}
