package store

import (
	"sync"

	"github.com/tabsense/tabsense/internal/types"
)

// MemoryBackend keeps results in memory only. Used in tests and dry
// runs; it does not survive a restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	results map[string]types.EnrichmentResult
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{results: make(map[string]types.EnrichmentResult)}
}

func (b *MemoryBackend) Put(tabID string, res types.EnrichmentResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[tabID] = res
	return nil
}

func (b *MemoryBackend) Get(tabID string) (types.EnrichmentResult, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res, ok := b.results[tabID]
	return res, ok, nil
}

func (b *MemoryBackend) GetAll() (map[string]types.EnrichmentResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]types.EnrichmentResult, len(b.results))
	for k, v := range b.results {
		out[k] = v
	}
	return out, nil
}

func (b *MemoryBackend) Remove(tabID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.results, tabID)
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
