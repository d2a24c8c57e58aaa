// Package registry persists a record of every engine launch in a local
// SQLite database, so that a later invocation can stop the engine by its
// recorded PID, process group and start time instead of by scanning.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"

	"github.com/giantswarm/enginectl/internal/fileutil"
	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/sentinel"
)

// ErrRecordNotFound is returned when no launch record has the requested ID.
const ErrRecordNotFound = sentinel.Error("launch record not found")

const schema = `
CREATE TABLE IF NOT EXISTS launches (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	pid         INTEGER NOT NULL,
	pgid        INTEGER NOT NULL,
	start_time  INTEGER NOT NULL,
	argv        TEXT NOT NULL,
	log_path    TEXT NOT NULL,
	pod_name    TEXT NOT NULL,
	pod_ip      TEXT NOT NULL,
	launched_at INTEGER NOT NULL,
	stopped_at  INTEGER NOT NULL DEFAULT 0,
	outcome     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS launches_active ON launches (name, stopped_at);
`

const selectColumns = `id, name, pid, pgid, start_time, argv, log_path, pod_name, pod_ip, launched_at, stopped_at, outcome`

// Record describes one launch.
type Record struct {
	ID string
	// Name is the process name the engine was launched under.
	Name      string
	PID       int
	PGID      int
	StartTime uint64
	Argv      []string
	LogPath   string
	PodName   string
	PodIP     string
	// LaunchedAt and StoppedAt are stored with nanosecond precision.
	// StoppedAt is zero while the record is active.
	LaunchedAt time.Time
	StoppedAt  time.Time
	Outcome    string
}

// Active reports whether the record has not been marked stopped.
func (r Record) Active() bool {
	return r.StoppedAt.IsZero()
}

// Handle returns the process handle recorded at launch.
func (r Record) Handle() process.Handle {
	return process.Handle{PID: r.PID, PGID: r.PGID, StartTime: r.StartTime}
}

// Store is a launch registry backed by SQLite. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Open opens or creates the registry at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=synchronous(NORMAL)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; the CLI is short-lived.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create registry schema in %s: %w", path, err)
	}
	logger.Debug("registry opened", "path", path)
	return &Store{db: db, path: path, log: logger}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close registry %s: %w", s.path, err)
	}
	return nil
}

// Insert stores rec as a new active launch. An empty ID is replaced with a
// random UUID and a zero LaunchedAt with the current time. The stored record
// is returned.
func (s *Store) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.LaunchedAt.IsZero() {
		rec.LaunchedAt = time.Now()
	}
	rec.StoppedAt = time.Time{}
	rec.Outcome = ""

	argv, err := json.Marshal(rec.Argv)
	if err != nil {
		return Record{}, fmt.Errorf("encode argv: %w", err)
	}
	const query = `INSERT INTO launches
		(id, name, pid, pgid, start_time, argv, log_path, pod_name, pod_ip, launched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.PID, rec.PGID, int64(rec.StartTime), string(argv),
		rec.LogPath, rec.PodName, rec.PodIP, rec.LaunchedAt.UnixNano(),
	); err != nil {
		return Record{}, fmt.Errorf("insert launch %s: %w", rec.ID, err)
	}
	s.log.Debug("launch recorded", "id", rec.ID, "pid", rec.PID)
	return rec, nil
}

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM launches WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get launch %s: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get launch %s: %w", id, err)
	}
	return rec, nil
}

// Active returns the records not yet marked stopped for name, newest first.
// An empty name returns active records of every name.
func (s *Store) Active(ctx context.Context, name string) ([]Record, error) {
	query := `SELECT ` + selectColumns + ` FROM launches WHERE stopped_at = 0`
	var args []any
	if name != "" {
		query += ` AND name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY launched_at DESC`
	return s.query(ctx, query, args...)
}

// List returns up to limit records of any state, newest first. A
// non-positive limit returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + selectColumns + ` FROM launches ORDER BY launched_at DESC`
	if limit > 0 {
		return s.query(ctx, query+` LIMIT ?`, limit)
	}
	return s.query(ctx, query)
}

// MarkStopped records that the launch ended with outcome at the given time.
// Marking an already stopped record overwrites its outcome.
func (s *Store) MarkStopped(ctx context.Context, id, outcome string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE launches SET stopped_at = ?, outcome = ? WHERE id = ?`,
		at.UnixNano(), outcome, id)
	if err != nil {
		return fmt.Errorf("mark launch %s stopped: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark launch %s stopped: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark launch %s stopped: %w", id, ErrRecordNotFound)
	}
	s.log.Debug("launch marked stopped", "id", id, "outcome", outcome)
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err() below reports read errors

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate launch rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                   Record
		startTime             int64
		argv                  string
		launchedAt, stoppedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.PID, &rec.PGID, &startTime, &argv,
		&rec.LogPath, &rec.PodName, &rec.PodIP, &launchedAt, &stoppedAt, &rec.Outcome); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(argv), &rec.Argv); err != nil {
		return Record{}, fmt.Errorf("decode argv of %s: %w", rec.ID, err)
	}
	rec.StartTime = uint64(startTime)
	rec.LaunchedAt = time.Unix(0, launchedAt)
	if stoppedAt != 0 {
		rec.StoppedAt = time.Unix(0, stoppedAt)
	}
	return rec, nil
}
