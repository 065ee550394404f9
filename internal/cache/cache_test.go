package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// exercise 对任意 Provider 运行相同的行为检查
func exercise(t *testing.T, p Provider, prefix string) {
	ctx := context.Background()
	key := prefix + "item"
	t.Cleanup(func() { _ = p.Delete(ctx, key) })

	var got payload
	assert.ErrorIs(t, p.Get(ctx, key, &got), ErrMiss)

	require.NoError(t, p.Set(ctx, key, payload{Name: "AAPL", Count: 3}, time.Minute))
	require.NoError(t, p.Get(ctx, key, &got))
	assert.Equal(t, payload{Name: "AAPL", Count: 3}, got)

	ok, err := p.SetNX(ctx, key, payload{Name: "other"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Delete(ctx, key))
	ok, err = p.SetNX(ctx, key, payload{Name: "fresh"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// 只有值匹配时才续期或删除
	ok, err = p.CompareAndExpire(ctx, key, payload{Name: "other"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = p.CompareAndExpire(ctx, key, payload{Name: "fresh"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.CompareAndDelete(ctx, key, payload{Name: "other"})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, p.Get(ctx, key, &got))

	ok, err = p.CompareAndDelete(ctx, key, payload{Name: "fresh"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, p.Get(ctx, key, &got), ErrMiss)
}

func TestMemoryProvider(t *testing.T) {
	exercise(t, NewMemoryProvider(), "")
}

func TestMemoryProviderExpiry(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	now := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	require.NoError(t, p.Set(ctx, "short", 1, time.Second))
	require.NoError(t, p.Set(ctx, "forever", 2, 0))
	assert.Equal(t, 2, p.Len())

	now = now.Add(2 * time.Second)

	var v int
	assert.ErrorIs(t, p.Get(ctx, "short", &v), ErrMiss)
	require.NoError(t, p.Get(ctx, "forever", &v))
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, p.Len())

	ok, err := p.CompareAndExpire(ctx, "short", 1, time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "expired key cannot be extended")

	ok, err = p.SetNX(ctx, "short", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired key must be claimable")
}

func TestMemoryProviderSetNXConcurrent(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := p.SetNX(ctx, "lock", i, time.Minute)
			if err != nil {
				t.Errorf("SetNX: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryProviderRejectsUnencodable(t *testing.T) {
	p := NewMemoryProvider()
	err := p.Set(context.Background(), "bad", make(chan int), 0)
	assert.Error(t, err)

	var nilProvider *MemoryProvider
	assert.Error(t, nilProvider.Get(context.Background(), "x", new(int)))
}

func TestRedisProvider(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := NewRedisProvider(ctx, RedisOptions{Addr: addr})
	require.NoError(t, err)
	defer p.Close()

	exercise(t, p, fmt.Sprintf("advisor:test:%d:", time.Now().UnixNano()))
}

func TestRedisProviderUninitialized(t *testing.T) {
	var p *RedisProvider
	err := p.Set(context.Background(), "k", 1, 0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss))
	assert.NoError(t, p.Close())
}
