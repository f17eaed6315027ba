package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/tabsense/tabsense/internal/types"
)

// Tab IDs come from CDP target identifiers; anything else is rejected so
// keys stay filesystem-safe.
var tabIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileBackend keeps one JSON file per tab in a directory. Each Put is
// written through immediately so results survive an agent restart.
type FileBackend struct {
	dir string
	mu  sync.RWMutex
}

// NewFileBackend creates the backend and ensures the directory exists.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("result store: mkdir %s: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

func validateTabID(tabID string) error {
	if !tabIDRe.MatchString(tabID) {
		return fmt.Errorf("invalid tab id: %q", tabID)
	}
	return nil
}

func (b *FileBackend) path(tabID string) string {
	return filepath.Join(b.dir, tabID+".json")
}

func (b *FileBackend) Put(tabID string, res types.EnrichmentResult) error {
	if err := validateTabID(tabID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("result store: marshal: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.WriteFile(b.path(tabID), data, 0o644); err != nil {
		return fmt.Errorf("result store: write: %w", err)
	}
	return nil
}

func (b *FileBackend) Get(tabID string) (types.EnrichmentResult, bool, error) {
	if err := validateTabID(tabID); err != nil {
		return types.EnrichmentResult{}, false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := os.ReadFile(b.path(tabID))
	if err != nil {
		if os.IsNotExist(err) {
			return types.EnrichmentResult{}, false, nil
		}
		return types.EnrichmentResult{}, false, fmt.Errorf("result store: read: %w", err)
	}

	var res types.EnrichmentResult
	if err := json.Unmarshal(data, &res); err != nil {
		return types.EnrichmentResult{}, false, fmt.Errorf("result store: unmarshal: %w", err)
	}
	return res, true, nil
}

func (b *FileBackend) GetAll() (map[string]types.EnrichmentResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(b.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("result store: glob: %w", err)
	}

	out := make(map[string]types.EnrichmentResult, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var res types.EnrichmentResult
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		tabID := strings.TrimSuffix(filepath.Base(path), ".json")
		out[tabID] = res
	}
	return out, nil
}

func (b *FileBackend) Remove(tabID string) error {
	if err := validateTabID(tabID); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.Remove(b.path(tabID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("result store: remove: %w", err)
	}
	return nil
}

func (b *FileBackend) Close() error {
	return nil
}
