package utils

import (
	"hash/maphash"
	"sync"
)

// ShardedMap is a fixed-shard concurrent string-keyed map, used by the
// global symbol table so that concurrent inserts only contend within one
// shard instead of a single global lock.
type ShardedMap[V any] struct {
	seed   maphash.Seed
	shards []shard[V]
}

type shard[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

func NewShardedMap[V any](shardCount int) *ShardedMap[V] {
	if shardCount < 1 {
		shardCount = 1
	}
	sm := &ShardedMap[V]{seed: maphash.MakeSeed(), shards: make([]shard[V], shardCount)}
	for i := range sm.shards {
		sm.shards[i].m = make(map[string]V)
	}
	return sm
}

func (sm *ShardedMap[V]) shardFor(key string) *shard[V] {
	h := maphash.String(sm.seed, key)
	return &sm.shards[h%uint64(len(sm.shards))]
}

// LoadOrStore returns the existing value for key, or stores and returns
// newVal() if none existed. newVal is only invoked on a miss.
func (sm *ShardedMap[V]) LoadOrStore(key string, newVal func() V) (V, bool) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v, true
	}
	v := newVal()
	s.m[key] = v
	return v, false
}

func (sm *ShardedMap[V]) Load(key string) (V, bool) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

// Range iterates all entries. Not safe to call concurrently with writes.
func (sm *ShardedMap[V]) Range(f func(key string, val V)) {
	for i := range sm.shards {
		for k, v := range sm.shards[i].m {
			f(k, v)
		}
	}
}

func (sm *ShardedMap[V]) Len() int {
	n := 0
	for i := range sm.shards {
		n += len(sm.shards[i].m)
	}
	return n
}
