// Package store keeps a local history of job attempts in SQLite so the
// history command can answer "when did this account last renew" without
// digging through CI logs.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles all database operations.
type Store struct {
	db *sql.DB
}

// AttemptRow is one recorded attempt.
type AttemptRow struct {
	ID         int64
	Job        string
	Account    string
	Outcome    string
	Message    string
	Tries      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// New opens (or creates) the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job TEXT NOT NULL,
		account TEXT NOT NULL,
		outcome TEXT NOT NULL,
		message TEXT,
		tries INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_job ON attempts(job, started_at);
	CREATE INDEX IF NOT EXISTS idx_attempts_account ON attempts(account, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordAttempt inserts one attempt. The account string is expected to
// already be masked by the caller.
func (s *Store) RecordAttempt(job, account, outcome, message string, tries int, started, finished time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO attempts (job, account, outcome, message, tries, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, job, account, outcome, message, tries, started, finished)
	return err
}

// ListRecent returns the newest attempts, optionally filtered by job.
func (s *Store) ListRecent(job string, limit int) ([]AttemptRow, error) {
	query := `
		SELECT id, job, account, outcome, message, tries, started_at, finished_at
		FROM attempts
	`
	args := []any{}
	if job != "" {
		query += ` WHERE job = ?`
		args = append(args, job)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttemptRow
	for rows.Next() {
		var r AttemptRow
		var msg sql.NullString
		err := rows.Scan(&r.ID, &r.Job, &r.Account, &r.Outcome, &msg, &r.Tries, &r.StartedAt, &r.FinishedAt)
		if err != nil {
			return nil, err
		}
		r.Message = msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastSuccess returns when the account last succeeded at the job, or a
// zero time when it never has.
func (s *Store) LastSuccess(job, account string) (time.Time, error) {
	var t sql.NullTime
	err := s.db.QueryRow(`
		SELECT MAX(finished_at) FROM attempts
		WHERE job = ? AND account = ? AND outcome = 'success'
	`, job, account).Scan(&t)
	if err != nil {
		return time.Time{}, err
	}
	return t.Time, nil
}
