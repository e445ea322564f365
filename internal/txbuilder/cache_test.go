package txbuilder

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_LoadsOncePerBlob(t *testing.T) {
	cache := NewCache[string]()
	calls := 0
	load := func(b []byte) (string, error) {
		calls++
		return "parsed:" + string(b), nil
	}

	v, err := cache.Get([]byte("chain-a"), load)
	require.NoError(t, err)
	require.Equal(t, "parsed:chain-a", v)

	v, err = cache.Get([]byte("chain-a"), load)
	require.NoError(t, err)
	require.Equal(t, "parsed:chain-a", v)
	require.Equal(t, 1, calls)

	_, err = cache.Get([]byte("chain-b"), load)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, 2, cache.Len())
}

func TestCache_FailedLoadNotCached(t *testing.T) {
	cache := NewCache[int]()
	_, err := cache.Get([]byte("x"), func([]byte) (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)
	require.Equal(t, 0, cache.Len())

	v, err := cache.Get([]byte("x"), func([]byte) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestCache_ConcurrentReads(t *testing.T) {
	cache := NewCache[int]()
	var mu sync.Mutex
	calls := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.Get([]byte("same"), func([]byte) (int, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				return 42, nil
			})
			require.NoError(t, err)
			require.Equal(t, 42, v)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, calls)
}
