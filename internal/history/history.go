// Package history records provisioning runs in a local SQLite database and
// maintains the legacy completion-time file the deployment media reads.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Run is one recorded provisioning attempt.
type Run struct {
	ID              string
	Role            string
	Preserve        bool
	StartedAt       time.Time
	DurationSeconds int
	Outcome         string
	Message         string
}

// Store wraps the SQLite run-history database.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens or creates the database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id               TEXT PRIMARY KEY,
			role             TEXT NOT NULL,
			preserve         INTEGER NOT NULL,
			started_at       TIMESTAMP NOT NULL,
			duration_seconds INTEGER NOT NULL,
			outcome          TEXT NOT NULL,
			message          TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordRun inserts a run, assigning an ID when none is set.
func (s *Store) RecordRun(r Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.conn.Exec(`
		INSERT INTO runs (id, role, preserve, started_at, duration_seconds, outcome, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Role, boolToInt(r.Preserve), r.StartedAt.UTC(), r.DurationSeconds, r.Outcome, r.Message)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// LastSuccessSeconds returns the duration of the most recent successful
// run, used to seed the next estimate.
func (s *Store) LastSuccessSeconds() (int, bool) {
	var seconds int
	err := s.conn.QueryRow(`
		SELECT duration_seconds FROM runs
		WHERE outcome = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, OutcomeSuccess).Scan(&seconds)
	if err != nil {
		return 0, false
	}
	return seconds, true
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(`
		SELECT id, role, preserve, started_at, duration_seconds, outcome, message
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var preserve int
		var message sql.NullString
		if err := rows.Scan(&r.ID, &r.Role, &preserve, &r.StartedAt, &r.DurationSeconds, &r.Outcome, &message); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Preserve = preserve != 0
		r.Message = message.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const completionFile = "completion_time.txt"

// ReadCompletionFile reads the prior run's elapsed seconds from the bare
// integer file under the driver package directory. Missing or unreadable
// files read as 0.
func ReadCompletionFile(driverPath string) int {
	data, err := os.ReadFile(filepath.Join(driverPath, completionFile))
	if err != nil {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

// WriteCompletionFile stores the elapsed seconds for the next run's
// estimate.
func WriteCompletionFile(driverPath string, seconds int) error {
	path := filepath.Join(driverPath, completionFile)
	if err := os.WriteFile(path, []byte(strconv.Itoa(seconds)), 0644); err != nil {
		return fmt.Errorf("failed to write completion time: %w", err)
	}
	return nil
}
