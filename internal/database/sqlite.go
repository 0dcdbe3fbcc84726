package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scenedeck/internal/database/migrations"
	"scenedeck/internal/deck"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const memoryPath = ":memory:"

// SQLiteDatabase stores deck application state: the recent projects list
// and the history of backup operations.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock deck.Clock
}

// NewSQLiteDatabase opens the database at path. path may be ":memory:".
// A nil clock uses the real clock.
func NewSQLiteDatabase(path string, clock deck.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = deck.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}, nil
}

// OpenConnection opens a SQLite connection with the PRAGMAs the state
// database relies on.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == memoryPath {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Path returns the database location.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations returns an error unless the schema is current.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close releases the connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Recent projects

// TouchRecentProject records a save of the project at path, replacing any
// earlier record of the same path.
func (s *SQLiteDatabase) TouchRecentProject(path, name string, savedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO recent_projects (path, name, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name = excluded.name, saved_at = excluded.saved_at`,
		path, name, savedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording recent project: %w", err)
	}
	return nil
}

// ListRecentProjects returns up to limit projects, most recently saved first.
func (s *SQLiteDatabase) ListRecentProjects(limit int) ([]*deck.RecentProject, error) {
	rows, err := s.db.Query(`
		SELECT path, name, saved_at FROM recent_projects
		ORDER BY saved_at DESC, path ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent projects: %w", err)
	}
	defer rows.Close()

	result := []*deck.RecentProject{}
	for rows.Next() {
		var (
			p       deck.RecentProject
			savedAt int64
		)
		if err := rows.Scan(&p.Path, &p.Name, &savedAt); err != nil {
			return nil, fmt.Errorf("scanning recent project: %w", err)
		}
		p.SavedAt = time.UnixMilli(savedAt).UTC()
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing recent projects: %w", err)
	}
	return result, nil
}

// Backup operation tracking

func (s *SQLiteDatabase) CreateBackupOperation(operation, parameters string) (*deck.BackupOperation, error) {
	startedAt := s.clock.Now().UTC().Truncate(time.Millisecond)
	res, err := s.db.Exec(`
		INSERT INTO backup_operations (started_at, operation, parameters, status)
		VALUES (?, ?, ?, 'running')`,
		startedAt.UnixMilli(), operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("creating backup operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating backup operation: %w", err)
	}
	return &deck.BackupOperation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  startedAt,
	}, nil
}

func (s *SQLiteDatabase) FinishBackupOperation(id int64, status, snapshotID string) error {
	res, err := s.db.Exec(`
		UPDATE backup_operations SET status = ?, snapshot_id = ?, finished_at = ?
		WHERE id = ?`,
		status, snapshotID, s.clock.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("finishing backup operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing backup operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing backup operation: no operation with id %d", id)
	}
	return nil
}

// ListBackupOperations returns up to limit operations, newest first.
func (s *SQLiteDatabase) ListBackupOperations(limit int) ([]*deck.BackupOperation, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, operation, parameters, status, snapshot_id
		FROM backup_operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing backup operations: %w", err)
	}
	defer rows.Close()

	result := []*deck.BackupOperation{}
	for rows.Next() {
		var (
			op        deck.BackupOperation
			startedAt int64
			finished  sql.NullInt64
		)
		if err := rows.Scan(&op.ID, &startedAt, &finished, &op.Operation, &op.Parameters, &op.Status, &op.SnapshotID); err != nil {
			return nil, fmt.Errorf("scanning backup operation: %w", err)
		}
		op.StartedAt = time.UnixMilli(startedAt).UTC()
		if finished.Valid {
			t := time.UnixMilli(finished.Int64).UTC()
			op.FinishedAt = &t
		}
		result = append(result, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing backup operations: %w", err)
	}
	return result, nil
}

// LastSnapshotID returns the snapshot of the newest successful push, or ""
// when there is none.
func (s *SQLiteDatabase) LastSnapshotID() (string, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT snapshot_id FROM backup_operations
		WHERE operation = 'push' AND status = 'success'
		ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding last snapshot: %w", err)
	}
	return id, nil
}

var (
	_ deck.RecentProjects = (*SQLiteDatabase)(nil)
	_ deck.BackupLog      = (*SQLiteDatabase)(nil)
)
