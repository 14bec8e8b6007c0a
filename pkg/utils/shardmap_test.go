package utils

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardedMapLoadOrStore(t *testing.T) {
	sm := NewShardedMap[int](4)

	v, existed := sm.LoadOrStore("a", func() int { return 1 })
	require.False(t, existed)
	require.Equal(t, 1, v)

	v, existed = sm.LoadOrStore("a", func() int { return 2 })
	require.True(t, existed)
	require.Equal(t, 1, v, "second call must not overwrite the first")

	require.Equal(t, 1, sm.Len())
}

func TestShardedMapConcurrentInserts(t *testing.T) {
	sm := NewShardedMap[int](8)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := "sym" + strconv.Itoa(i%10)
			sm.LoadOrStore(key, func() int { return i })
		}()
	}
	wg.Wait()

	require.Equal(t, 10, sm.Len(), "10 distinct keys should survive concurrent LoadOrStore races")
}

func TestShardedMapLoad(t *testing.T) {
	sm := NewShardedMap[string](2)
	_, ok := sm.Load("missing")
	require.False(t, ok)

	sm.LoadOrStore("k", func() string { return "v" })
	v, ok := sm.Load("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}
