// Package store provides the SQLite data access layer for the risk
// pipeline: raw payload inbox, canonical events, scored events, daily
// summaries, rolling baselines and the durable alert history that backs
// cooldown deduplication.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vigialab/vigia/idgen"
)

// Store wraps the risk database.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, newID: idgen.Default}
}

// WithIDGenerator overrides the ID generator (tests use deterministic IDs).
func (s *Store) WithIDGenerator(gen idgen.Generator) *Store {
	s.newID = gen
	return s
}

// DayBounds returns the [start, end) ms-epoch bounds of a "2006-01-02"
// UTC calendar date.
func DayBounds(date string) (int64, int64, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, 0, fmt.Errorf("store: bad date %q: %w", date, err)
	}
	start := t.UTC()
	return start.UnixMilli(), start.AddDate(0, 0, 1).UnixMilli(), nil
}

// DateOf formats a ms-epoch timestamp as its UTC calendar date.
func DateOf(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
