// Package history persists which items the user has activated. It powers two
// ranking features: recently used filters are suggested when the list keyword
// has no argument, and recently selected tasks sort above equally urgent
// ones. Losing the database only loses ranking hints, never task state.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded selection.
type Entry struct {
	Action      string
	UUID        string
	Description string
	Filter      string
	At          time.Time
}

// Store is a sqlite-backed selection history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and initializes the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS selections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			uuid TEXT DEFAULT '',
			description TEXT DEFAULT '',
			filter TEXT DEFAULT '',
			at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_selections_at ON selections(at);
		CREATE INDEX IF NOT EXISTS idx_selections_uuid ON selections(uuid);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores one selection. A zero At defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO selections (action, uuid, description, filter, at) VALUES (?, ?, ?, ?, ?)`,
		e.Action, e.UUID, e.Description, e.Filter, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record selection: %w", err)
	}
	return nil
}

// RecentFilters returns up to n distinct non-empty filters, most recently
// used first.
func (s *Store) RecentFilters(ctx context.Context, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filter FROM selections
		 WHERE filter != ''
		 GROUP BY filter
		 ORDER BY MAX(at) DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// Boost returns per-uuid selection counts within the given window. Tasks with
// higher counts are promoted in list results.
func (s *Store) Boost(ctx context.Context, window time.Duration) (map[string]int, error) {
	since := time.Now().Add(-window).Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, COUNT(*) FROM selections
		 WHERE uuid != '' AND at >= ?
		 GROUP BY uuid`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var uuid string
		var n int
		if err := rows.Scan(&uuid, &n); err != nil {
			return nil, err
		}
		counts[uuid] = n
	}
	return counts, rows.Err()
}

// Prune deletes selections older than keep.
func (s *Store) Prune(ctx context.Context, keep time.Duration) error {
	cutoff := time.Now().Add(-keep).Unix()
	_, err := s.db.ExecContext(ctx, `DELETE FROM selections WHERE at < ?`, cutoff)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
