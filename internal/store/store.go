package store

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/tabsense/tabsense/internal/types"
)

// Backend is a durable keyed mapping from tab ID to the latest
// enrichment result.
type Backend interface {
	Put(tabID string, res types.EnrichmentResult) error
	Get(tabID string) (types.EnrichmentResult, bool, error)
	GetAll() (map[string]types.EnrichmentResult, error)
	Remove(tabID string) error
	Close() error
}

// Store wraps a Backend with closed-tab bookkeeping: once a tab is
// removed, a late Put from a pipeline run that was already in flight is
// dropped instead of resurrecting the entry. Tab IDs are never reused
// within an agent lifetime, so the tombstones only need to live in
// memory.
type Store struct {
	backend Backend

	mu      sync.Mutex
	removed map[string]struct{}
}

func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		removed: make(map[string]struct{}),
	}
}

// Put overwrites the tab's result. A Put for a removed tab is a no-op.
func (s *Store) Put(tabID string, res types.EnrichmentResult) error {
	s.mu.Lock()
	_, gone := s.removed[tabID]
	s.mu.Unlock()
	if gone {
		return nil
	}
	return s.backend.Put(tabID, res)
}

func (s *Store) Get(tabID string) (types.EnrichmentResult, bool, error) {
	return s.backend.Get(tabID)
}

func (s *Store) GetAll() (map[string]types.EnrichmentResult, error) {
	return s.backend.GetAll()
}

// Remove purges the tab's result and tombstones the ID.
func (s *Store) Remove(tabID string) error {
	s.mu.Lock()
	s.removed[tabID] = struct{}{}
	s.mu.Unlock()
	return s.backend.Remove(tabID)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Open builds a Store from a DSN. Supported schemes:
//
//	file:<dir>     directory of per-tab JSON files (default for bare paths)
//	sqlite:<path>  sqlite database file
//	memory:        in-memory only, for tests and dry runs
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store: empty DSN")
	}

	scheme := ""
	rest := dsn
	if i := strings.Index(dsn, ":"); i >= 0 {
		scheme = strings.ToLower(dsn[:i])
		rest = dsn[i+1:]
	}

	switch scheme {
	case "", "file":
		backend, err := NewFileBackend(dsnPath(rest, dsn, scheme))
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	case "sqlite":
		backend, err := NewSQLiteBackend(dsnPath(rest, dsn, scheme))
		if err != nil {
			return nil, err
		}
		return New(backend), nil
	case "memory", "mem":
		return New(NewMemoryBackend()), nil
	default:
		return nil, fmt.Errorf("store: unsupported DSN scheme %q", scheme)
	}
}

func dsnPath(rest, dsn, scheme string) string {
	if scheme == "" {
		return dsn
	}
	rest = strings.TrimPrefix(rest, "//")
	if unescaped, err := url.PathUnescape(rest); err == nil {
		return unescaped
	}
	return rest
}
