package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemory(ttl time.Duration) (*Memory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemory(ttl)
	m.now = clock.Now
	return m, clock
}

func TestMemory_GetSet(t *testing.T) {
	m, _ := newTestMemory(5 * time.Second)
	ctx := context.Background()

	_, ok := m.Get(ctx, "boletas")
	assert.False(t, ok)

	m.Set(ctx, "boletas", []byte("data"))

	data, ok := m.Get(ctx, "boletas")
	assert.True(t, ok)
	assert.Equal(t, []byte("data"), data)
}

func TestMemory_ExpiresLazilyOnRead(t *testing.T) {
	m, clock := newTestMemory(5 * time.Second)
	ctx := context.Background()

	m.Set(ctx, "boletas", []byte("data"))

	clock.Advance(5 * time.Second)
	_, ok := m.Get(ctx, "boletas")
	assert.True(t, ok, "entry at exactly ttl is still fresh")

	clock.Advance(time.Millisecond)
	_, ok = m.Get(ctx, "boletas")
	assert.False(t, ok)

	m.mu.Lock()
	_, present := m.entries["boletas"]
	m.mu.Unlock()
	assert.False(t, present, "expired entry is removed on read")
}

func TestMemory_InvalidateAndClear(t *testing.T) {
	m, _ := newTestMemory(time.Minute)
	ctx := context.Background()

	m.Set(ctx, "a", []byte("1"))
	m.Set(ctx, "b", []byte("2"))
	m.Set(ctx, "c", []byte("3"))

	m.Invalidate(ctx, "a", "b")

	_, ok := m.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = m.Get(ctx, "c")
	assert.True(t, ok)

	m.Clear(ctx)
	_, ok = m.Get(ctx, "c")
	assert.False(t, ok)
}

func TestLoader_ComputesOnceUntilInvalidated(t *testing.T) {
	m, _ := newTestMemory(time.Minute)
	loader := NewLoader(m)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return []string{"00", "01"}, nil
	}

	var first, second []string
	require.NoError(t, loader.Load(ctx, "k", &first, compute))
	require.NoError(t, loader.Load(ctx, "k", &second, compute))

	assert.Equal(t, []string{"00", "01"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	loader.Invalidate(ctx, "k")
	require.NoError(t, loader.Load(ctx, "k", &second, compute))
	assert.Equal(t, 2, calls)
}

func TestLoader_ErrorIsNotCached(t *testing.T) {
	m, _ := newTestMemory(time.Minute)
	loader := NewLoader(m)
	ctx := context.Background()

	var out []string
	err := loader.Load(ctx, "k", &out, func(ctx context.Context) (any, error) {
		return nil, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestLoader_CollapsesConcurrentMisses(t *testing.T) {
	m, _ := newTestMemory(time.Minute)
	loader := NewLoader(m)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, loader.Load(ctx, "k", &results[i], compute))
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(10))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}

func TestRedis_GetSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, 5*time.Second)
	ctx := context.Background()

	mock.ExpectGet("rifa:cache:boletas").RedisNil()
	_, ok := c.Get(ctx, "boletas")
	assert.False(t, ok)

	mock.ExpectSet("rifa:cache:boletas", []byte("data"), 5*time.Second).SetVal("OK")
	c.Set(ctx, "boletas", []byte("data"))

	mock.ExpectGet("rifa:cache:boletas").SetVal("data")
	data, ok := c.Get(ctx, "boletas")
	assert.True(t, ok)
	assert.Equal(t, []byte("data"), data)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_GetErrorIsMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, 5*time.Second)

	mock.ExpectGet("rifa:cache:boletas").SetErr(errors.New("connection refused"))
	_, ok := c.Get(context.Background(), "boletas")
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Invalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, 5*time.Second)

	mock.ExpectDel("rifa:cache:boletas", "rifa:cache:resultados").SetVal(2)
	c.Invalidate(context.Background(), "boletas", "resultados")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_Clear(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedis(db, 5*time.Second)

	mock.ExpectScan(0, "rifa:cache:*", 100).SetVal([]string{"rifa:cache:a"}, 7)
	mock.ExpectDel("rifa:cache:a").SetVal(1)
	mock.ExpectScan(7, "rifa:cache:*", 100).SetVal([]string{"rifa:cache:b"}, 0)
	mock.ExpectDel("rifa:cache:b").SetVal(1)

	c.Clear(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoader_CallerCancelDoesNotFailSharedLoad(t *testing.T) {
	m, _ := newTestMemory(time.Minute)
	loader := NewLoader(m)

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return 42, nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	var first int
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- loader.Load(firstCtx, "k", &first, compute)
	}()
	<-started

	var second int
	secondErr := make(chan error, 1)
	go func() {
		secondErr <- loader.Load(context.Background(), "k", &second, func(ctx context.Context) (any, error) {
			return 0, errors.New("computed twice")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	require.NoError(t, <-firstErr)
	require.NoError(t, <-secondErr)
	assert.Equal(t, 42, first)
	assert.Equal(t, 42, second)

	_, ok := m.Get(context.Background(), "k")
	assert.True(t, ok, "result is cached even though the first caller left")
}
