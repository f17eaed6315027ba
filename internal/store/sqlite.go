package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tabsense/tabsense/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS results (
	tab_id      TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	produced_at TEXT NOT NULL
);`

// SQLiteBackend stores results in a single sqlite database. The result
// is kept as a JSON payload column; produced_at is duplicated for
// inspection with plain SQL.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("result store: open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("result store: init schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Put(tabID string, res types.EnrichmentResult) error {
	if err := validateTabID(tabID); err != nil {
		return err
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("result store: marshal: %w", err)
	}

	_, err = b.db.Exec(
		`INSERT INTO results (tab_id, payload, produced_at) VALUES (?, ?, ?)
		 ON CONFLICT(tab_id) DO UPDATE SET payload = excluded.payload, produced_at = excluded.produced_at`,
		tabID, string(payload), res.ProducedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	)
	if err != nil {
		return fmt.Errorf("result store: upsert: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Get(tabID string) (types.EnrichmentResult, bool, error) {
	if err := validateTabID(tabID); err != nil {
		return types.EnrichmentResult{}, false, err
	}

	var payload string
	err := b.db.QueryRow(`SELECT payload FROM results WHERE tab_id = ?`, tabID).Scan(&payload)
	if err == sql.ErrNoRows {
		return types.EnrichmentResult{}, false, nil
	}
	if err != nil {
		return types.EnrichmentResult{}, false, fmt.Errorf("result store: query: %w", err)
	}

	var res types.EnrichmentResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return types.EnrichmentResult{}, false, fmt.Errorf("result store: unmarshal: %w", err)
	}
	return res, true, nil
}

func (b *SQLiteBackend) GetAll() (map[string]types.EnrichmentResult, error) {
	rows, err := b.db.Query(`SELECT tab_id, payload FROM results`)
	if err != nil {
		return nil, fmt.Errorf("result store: query all: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]types.EnrichmentResult)
	for rows.Next() {
		var tabID, payload string
		if err := rows.Scan(&tabID, &payload); err != nil {
			return nil, fmt.Errorf("result store: scan: %w", err)
		}
		var res types.EnrichmentResult
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			continue
		}
		out[tabID] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result store: rows: %w", err)
	}
	return out, nil
}

func (b *SQLiteBackend) Remove(tabID string) error {
	if err := validateTabID(tabID); err != nil {
		return err
	}
	if _, err := b.db.Exec(`DELETE FROM results WHERE tab_id = ?`, tabID); err != nil {
		return fmt.Errorf("result store: delete: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
