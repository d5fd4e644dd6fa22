// Package history keeps a SQLite record of every workflow run.
//
// The YAML report only describes the latest run of a directory. The history
// database collects runs across directories so past results can be listed
// and inspected later. A [Store] implements the runner's recorder interface
// and upserts the whole run on every snapshot.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"sirilflow/internal/status"
)

// ErrNotFound indicates no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps the SQLite history database.
type Store struct {
	DB *sql.DB
}

// Entry is one run as listed by [Store.List].
type Entry struct {
	ID            string
	Script        string
	Dir           string
	Status        status.Status
	EngineVersion string
	DryRun        bool
	Error         string
	Started       time.Time
	Finished      time.Time
	Commands      int
}

// Duration returns how long the run took, or 0 if it did not finish.
func (e Entry) Duration() time.Duration {
	if e.Finished.IsZero() {
		return 0
	}
	return e.Finished.Sub(e.Started)
}

// New opens (or creates) the database at path and ensures the schema.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare history: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            script TEXT NOT NULL,
            dir TEXT NOT NULL,
            requires TEXT,
            engine_version TEXT,
            dry_run BOOLEAN DEFAULT FALSE,
            status TEXT NOT NULL,
            error_message TEXT,
            started_at TEXT NOT NULL,
            finished_at TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS run_commands (
            run_id TEXT NOT NULL,
            idx INTEGER NOT NULL,
            line INTEGER,
            command TEXT NOT NULL,
            status TEXT NOT NULL,
            message TEXT,
            started_at TEXT,
            duration_ns INTEGER,
            PRIMARY KEY (run_id, idx)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Record stores the current state of run, replacing any earlier snapshot.
func (s *Store) Record(run *status.Run) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO runs
        (id, script, dir, requires, engine_version, dry_run, status, error_message, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		run.ID, run.Script, run.Dir, run.Requires, run.EngineVersion, run.DryRun,
		string(run.Status), run.Error, formatTime(run.Started), formatTime(run.Finished))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM run_commands WHERE run_id=?;`, run.ID); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	for _, c := range run.Commands {
		_, err := tx.Exec(`INSERT INTO run_commands
            (run_id, idx, line, command, status, message, started_at, duration_ns)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
			run.ID, c.Index, c.Line, c.Text, string(c.Status), c.Message, formatTime(c.Started), int64(c.Duration))
		if err != nil {
			return fmt.Errorf("failed to record command %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.Query(`SELECT r.id, r.script, r.dir, r.status, r.engine_version, r.dry_run,
            r.error_message, r.started_at, r.finished_at,
            (SELECT COUNT(*) FROM run_commands c WHERE c.run_id = r.id)
        FROM runs r ORDER BY r.started_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var st string
		var version, errMsg, started, finished sql.NullString
		if err := rows.Scan(&e.ID, &e.Script, &e.Dir, &st, &version, &e.DryRun,
			&errMsg, &started, &finished, &e.Commands); err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		e.Status = status.Status(st)
		e.EngineVersion = version.String
		e.Error = errMsg.String
		e.Started = parseTime(started)
		e.Finished = parseTime(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get loads a full run with its commands.
func (s *Store) Get(id string) (*status.Run, error) {
	run := &status.Run{ID: id}
	var st string
	var requires, version, errMsg, started, finished sql.NullString
	err := s.DB.QueryRow(`SELECT script, dir, requires, engine_version, dry_run, status,
            error_message, started_at, finished_at FROM runs WHERE id=?;`, id).
		Scan(&run.Script, &run.Dir, &requires, &version, &run.DryRun, &st, &errMsg, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	run.Status = status.Status(st)
	run.Requires = requires.String
	run.EngineVersion = version.String
	run.Error = errMsg.String
	run.Started = parseTime(started)
	run.Finished = parseTime(finished)

	rows, err := s.DB.Query(`SELECT idx, line, command, status, message, started_at, duration_ns
        FROM run_commands WHERE run_id=? ORDER BY idx;`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load commands of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c status.Command
		var cst string
		var line, duration sql.NullInt64
		var msg, cstarted sql.NullString
		if err := rows.Scan(&c.Index, &line, &c.Text, &cst, &msg, &cstarted, &duration); err != nil {
			return nil, fmt.Errorf("failed to load commands of %s: %w", id, err)
		}
		c.Line = int(line.Int64)
		c.Status = status.Status(cst)
		c.Message = msg.String
		c.Started = parseTime(cstarted)
		c.Duration = time.Duration(duration.Int64)
		run.Commands = append(run.Commands, c)
	}
	return run, rows.Err()
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
