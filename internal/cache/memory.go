package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// defaultMemoryEntries bounds the in-memory layer when the configured entry
// cap is very large.
const defaultMemoryEntries = 4096

// memoryLayer is a read-through LRU sitting in front of the SQLite store.
// It holds deserialized ChunkSets so repeat lookups within a run skip both
// the database and the JSON decode.
type memoryLayer struct {
	cache *lru.Cache[string, *types.ChunkSet]
}

func memoryLayerSize(maxEntries int) int {
	if maxEntries <= 0 || maxEntries > defaultMemoryEntries {
		return defaultMemoryEntries
	}
	return maxEntries
}

func newMemoryLayer(size int) *memoryLayer {
	c, err := lru.New[string, *types.ChunkSet](size)
	if err != nil {
		c, _ = lru.New[string, *types.ChunkSet](defaultMemoryEntries)
	}
	return &memoryLayer{cache: c}
}

func (m *memoryLayer) Get(key string) (*types.ChunkSet, bool) {
	return m.cache.Get(key)
}

func (m *memoryLayer) Add(key string, cs *types.ChunkSet) {
	m.cache.Add(key, cs)
}

func (m *memoryLayer) Remove(key string) {
	m.cache.Remove(key)
}

func (m *memoryLayer) Purge() {
	m.cache.Purge()
}

func (m *memoryLayer) Len() int {
	return m.cache.Len()
}
