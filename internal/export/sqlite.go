package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/christopherklint97/workcal/internal/engine"
)

// sqlx picks "?" bind vars for this driver name; the connection itself is
// opened with modernc's "sqlite" driver.
const bindDriver = "sqlite3"

// SQLiteStore keeps every exported report run in a local database.
type SQLiteStore struct {
	db *sqlx.DB
}

type Run struct {
	ID          string `db:"id" json:"id"`
	GeneratedAt string `db:"generated_at" json:"generatedAt"` // RFC 3339, UTC
	Users       int    `db:"users" json:"users"`
}

type EventRecord struct {
	RunID        string `db:"run_id"`
	UserEmail    string `db:"user_email"`
	UserName     string `db:"user_name"`
	Start        string `db:"start_time"`
	End          string `db:"end_time"`
	Hours        string `db:"hours"`
	CategoryName string `db:"category_name"`
}

type TaskRecord struct {
	RunID      string `db:"run_id"`
	UserEmail  string `db:"user_email"`
	Title      string `db:"title"`
	DateLogged string `db:"date_logged"`
	LoggedBy   string `db:"logged_by"`
	Hours      int    `db:"hours"`
	Minutes    int    `db:"minutes"`
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store := &SQLiteStore{db: sqlx.NewDb(db, bindDriver)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			generated_at TEXT NOT NULL,
			users INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS report_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			user_email TEXT NOT NULL,
			user_name TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			hours TEXT NOT NULL,
			category_name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS report_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			user_email TEXT NOT NULL,
			title TEXT NOT NULL,
			date_logged TEXT NOT NULL,
			logged_by TEXT NOT NULL,
			hours INTEGER NOT NULL,
			minutes INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_events_run ON report_events(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_report_tasks_run ON report_tasks(run_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	return nil
}

// Export stores rows as one run in a single transaction and returns the run
// ID.
func (s *SQLiteStore) Export(ctx context.Context, rows []engine.ReportRow) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, generated_at, users) VALUES (?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339Nano), len(rows),
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, row := range rows {
		for _, ev := range row.Events {
			rec := EventRecord{
				RunID:        runID,
				UserEmail:    row.Email,
				UserName:     row.Name,
				Start:        ev.Start.UTC().Format(time.RFC3339),
				End:          ev.End.UTC().Format(time.RFC3339),
				Hours:        ev.Hours,
				CategoryName: ev.CategoryName,
			}
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO report_events (run_id, user_email, user_name, start_time, end_time, hours, category_name)
				 VALUES (:run_id, :user_email, :user_name, :start_time, :end_time, :hours, :category_name)`,
				rec,
			); err != nil {
				return "", fmt.Errorf("inserting event for %s: %w", row.Email, err)
			}
		}
		for _, t := range row.Tasks {
			rec := TaskRecord{
				RunID:      runID,
				UserEmail:  row.Email,
				Title:      t.Title,
				DateLogged: t.DateLogged,
				LoggedBy:   t.LoggedBy,
				Hours:      t.Hours,
				Minutes:    t.Minutes,
			}
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO report_tasks (run_id, user_email, title, date_logged, logged_by, hours, minutes)
				 VALUES (:run_id, :user_email, :title, :date_logged, :logged_by, :hours, :minutes)`,
				rec,
			); err != nil {
				return "", fmt.Errorf("inserting task for %s: %w", row.Email, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

func (s *SQLiteStore) Runs(ctx context.Context) ([]Run, error) {
	var runs []Run
	err := s.db.SelectContext(ctx, &runs, `SELECT id, generated_at, users FROM runs ORDER BY generated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) RunEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	var events []EventRecord
	err := s.db.SelectContext(ctx, &events, `
		SELECT run_id, user_email, user_name, start_time, end_time, hours, category_name
		FROM report_events
		WHERE run_id = ?
		ORDER BY user_email, start_time
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing events for run %s: %w", runID, err)
	}
	return events, nil
}

func (s *SQLiteStore) RunTasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	var tasks []TaskRecord
	err := s.db.SelectContext(ctx, &tasks, `
		SELECT run_id, user_email, title, date_logged, logged_by, hours, minutes
		FROM report_tasks
		WHERE run_id = ?
		ORDER BY user_email, date_logged
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for run %s: %w", runID, err)
	}
	return tasks, nil
}
