package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", "1", time.Minute))
	v, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	ok, err := m.SetNX(ctx, "a", "2", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := m.Incr(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	now = now.Add(2 * time.Minute)
	v, err = m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, v)

	ok, err = m.SetNX(ctx, "a", []byte("x"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Set(ctx, "wiki:history:u1", "[]", 0))
	require.NoError(t, m.Set(ctx, "wiki:history:u2", "[]", 0))
	keys, err := m.Keys(ctx, "wiki:history:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"wiki:history:u1", "wiki:history:u2"}, keys)

	require.NoError(t, m.Del(ctx, keys...))
	keys, err = m.Keys(ctx, "wiki:history:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Update(ctx, "n", 0, func(cur string) (string, error) {
				n, _ := strconv.Atoi(cur)
				return strconv.Itoa(n + 1), nil
			})
		}()
	}
	wg.Wait()
	v, err := m.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, "50", v)

	boom := errors.New("boom")
	err = m.Update(ctx, "n", 0, func(string) (string, error) { return "x", boom })
	assert.ErrorIs(t, err, boom)
	v, _ = m.Get(ctx, "n")
	assert.Equal(t, "50", v)

	require.NoError(t, m.Update(ctx, "n", 0, func(string) (string, error) { return "", nil }))
	v, _ = m.Get(ctx, "n")
	assert.Empty(t, v)
}
