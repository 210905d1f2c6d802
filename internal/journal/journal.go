package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
// Users will need to delete their history database after schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status is the outcome of a journaled operation.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCached    Status = "cached"
)

// Entry is one journaled operation.
type Entry struct {
	ID             string
	RunID          string
	Operation      string
	Status         Status
	Source         string
	Encode         string
	SuperframeSize int
	Invocation     string
	Artifact       string
	Error          string
	StartedAt      time.Time
	Duration       time.Duration
}

// Filter narrows List results. A zero Limit means 50.
type Filter struct {
	Limit     int
	Operation string
	RunID     string
}

// Journal manages operation history backed by SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultListLimit        = 50

	// timeLayout is fixed width so started_at sorts chronologically as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Open initializes or connects to the history database at path.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path}
	if err := j.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Path returns the database location.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores entry, filling in the ID and start time when they are unset.
// A nil Journal discards entries.
func (j *Journal) Record(ctx context.Context, entry Entry) (Entry, error) {
	if j == nil {
		return entry, nil
	}
	if strings.TrimSpace(entry.Operation) == "" {
		return entry, errors.New("journal entry has no operation")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RunID == "" {
		entry.RunID = entry.ID
	}
	if entry.Status == "" {
		entry.Status = StatusSucceeded
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now()
	}
	entry.StartedAt = entry.StartedAt.UTC()

	err := retryOnBusy(ctx, func() error {
		_, execErr := j.db.ExecContext(ctx,
			`INSERT INTO invocations (
                id, run_id, operation, status, source, encode, superframe_size,
                invocation, artifact, error_message, started_at, duration_ms
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			entry.RunID,
			entry.Operation,
			string(entry.Status),
			nullableString(entry.Source),
			nullableString(entry.Encode),
			nullableInt(entry.SuperframeSize),
			nullableString(entry.Invocation),
			nullableString(entry.Artifact),
			nullableString(entry.Error),
			entry.StartedAt.Format(timeLayout),
			entry.Duration.Milliseconds(),
		)
		return execErr
	})
	if err != nil {
		return entry, fmt.Errorf("insert journal entry: %w", err)
	}
	return entry, nil
}

// List returns the most recent entries first.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var (
		clauses []string
		args    []any
	)
	if op := strings.TrimSpace(filter.Operation); op != "" {
		clauses = append(clauses, "operation = ?")
		args = append(args, op)
	}
	if run := strings.TrimSpace(filter.RunID); run != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, run)
	}
	query := `SELECT id, run_id, operation, status, source, encode, superframe_size,
        invocation, artifact, error_message, started_at, duration_ms FROM invocations`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry                                              Entry
		status, startedAt                                  string
		source, encode, invocation, artifact, errorMessage sql.NullString
		superframe                                         sql.NullInt64
		durationMS                                         int64
	)
	if err := rows.Scan(
		&entry.ID, &entry.RunID, &entry.Operation, &status, &source, &encode, &superframe,
		&invocation, &artifact, &errorMessage, &startedAt, &durationMS,
	); err != nil {
		return Entry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	entry.Status = Status(status)
	entry.Source = source.String
	entry.Encode = encode.String
	entry.SuperframeSize = int(superframe.Int64)
	entry.Invocation = invocation.String
	entry.Artifact = artifact.String
	entry.Error = errorMessage.String
	entry.StartedAt = ts
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	return entry, nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	var tableExists int
	err := j.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return j.createSchema(ctx)
	}

	var version int
	if err := j.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start a new history)",
			ErrSchemaMismatch, version, schemaVersion, j.path)
	}
	return nil
}

func (j *Journal) createSchema(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}
