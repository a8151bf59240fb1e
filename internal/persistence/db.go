// Package persistence stores the run's statistics history and notable events
// in an in-memory SQLite database. The simulation is scoped to one page
// session, so nothing here outlives the process.
package persistence

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/parsa83KH/virus/internal/sim"
	"github.com/parsa83KH/virus/internal/stats"
)

// Store wraps the in-memory SQLite connection.
type Store struct {
	conn *sqlx.DB
}

// Open creates a fresh in-memory store for one session.
func Open() (*Store, error) {
	conn, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A :memory: database exists per connection; keep exactly one.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the connection, discarding all stored history.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL,
		stage INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		healthy INTEGER NOT NULL,
		infected INTEGER NOT NULL,
		sick INTEGER NOT NULL,
		recovered INTEGER NOT NULL,
		vaccinated INTEGER NOT NULL,
		dead INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_tick ON samples(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(run_id, tick);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SampleRow is one persisted census.
type SampleRow struct {
	RunID      string `db:"run_id" json:"run_id"`
	Stage      int    `db:"stage" json:"stage"`
	Tick       uint64 `db:"tick" json:"tick"`
	Healthy    int    `db:"healthy" json:"healthy"`
	Infected   int    `db:"infected" json:"infected"`
	Sick       int    `db:"sick" json:"sick"`
	Recovered  int    `db:"recovered" json:"recovered"`
	Vaccinated int    `db:"vaccinated" json:"vaccinated"`
	Dead       int    `db:"dead" json:"dead"`
}

// EventRow is one persisted run event.
type EventRow struct {
	Tick        uint64 `db:"tick" json:"tick"`
	Description string `db:"description" json:"description"`
	Category    string `db:"category" json:"category"`
}

// RecordSample persists one statistics sample.
func (s *Store) RecordSample(runID string, stage int, sample stats.Sample) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO samples
		(run_id, stage, tick, healthy, infected, sick, recovered, vaccinated, dead)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, stage, sample.Tick,
		sample.Counts[sim.Healthy], sample.Counts[sim.Infected], sample.Counts[sim.Sick],
		sample.Counts[sim.Recovered], sample.Counts[sim.Vaccinated], sample.Counts[sim.Dead],
	)
	if err != nil {
		return fmt.Errorf("record sample at tick %d: %w", sample.Tick, err)
	}
	return nil
}

// RecordEvent appends a notable run event (stage transitions, die-outs).
func (s *Store) RecordEvent(runID string, tick uint64, description, category string) error {
	_, err := s.conn.Exec(
		"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
		runID, tick, description, category,
	)
	return err
}

// SampleHistory returns samples for a run within [fromTick, toTick], oldest
// first, capped at limit.
func (s *Store) SampleHistory(runID string, fromTick, toTick uint64, limit int) ([]SampleRow, error) {
	var rows []SampleRow
	err := s.conn.Select(&rows, `SELECT run_id, stage, tick, healthy, infected, sick, recovered, vaccinated, dead
		FROM samples WHERE run_id = ? AND tick >= ? AND tick <= ?
		ORDER BY tick ASC LIMIT ?`,
		runID, fromTick, toTick, limit,
	)
	return rows, err
}

// RecentEvents returns the most recent events for a run, newest first.
func (s *Store) RecentEvents(runID string, limit int) ([]EventRow, error) {
	var events []EventRow
	err := s.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}
