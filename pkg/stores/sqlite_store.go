package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a result does not exist.
var ErrNotFound = errors.New("result not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate&_time_format=sqlite", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// The driver only needs the open *sql.DB, whichever SQLite driver backs it.
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// execer is implemented by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertResult = `
	INSERT INTO results (
		id, run_id, model, query, kind, target, representation, status,
		error_code, error, paths, pruned, samples, duration_ns, outcome, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectResult = `
	SELECT id, run_id, model, query, kind, target, representation, status,
		   error_code, error, paths, pruned, samples, duration_ns, outcome, created_at
	FROM results
`

func saveResult(ctx context.Context, ex execer, result *Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	// Stored as text; one zone keeps range queries ordered.
	result.CreatedAt = result.CreatedAt.UTC()
	if result.Outcome == "" {
		result.Outcome = "{}"
	}

	_, err := ex.ExecContext(ctx, insertResult,
		result.ID,
		result.RunID,
		result.Model,
		result.Query,
		result.Kind,
		result.Target,
		result.Representation,
		result.Status,
		result.ErrorCode,
		result.Error,
		result.Paths,
		result.Pruned,
		result.Samples,
		result.Duration.Nanoseconds(),
		result.Outcome,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

// SaveResult stores a result. Empty ID and CreatedAt are filled in.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *Result) error {
	return saveResult(ctx, s.db, result)
}

// SaveResults stores the results of one run in a single transaction.
func (s *SQLiteStore) SaveResults(ctx context.Context, results []*Result) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, r := range results {
		if err := saveResult(ctx, tx, r); err != nil {
			_ = s.RollbackTx(tx)
			return err
		}
	}

	if err := s.CommitTx(tx); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*Result, error) {
	result := &Result{}
	var durationNS int64
	err := row.Scan(
		&result.ID,
		&result.RunID,
		&result.Model,
		&result.Query,
		&result.Kind,
		&result.Target,
		&result.Representation,
		&result.Status,
		&result.ErrorCode,
		&result.Error,
		&result.Paths,
		&result.Pruned,
		&result.Samples,
		&durationNS,
		&result.Outcome,
		&result.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Duration(durationNS)
	return result, nil
}

// GetResult retrieves a result by ID
func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*Result, error) {
	result, err := scanResult(s.db.QueryRowContext(ctx, selectResult+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return result, nil
}

// ListResults lists results, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]*Result, error) {
	query := selectResult + `
		WHERE (? = '' OR model = ?)
		  AND (? = '' OR query = ?)
		  AND (? = '' OR run_id = ?)
		  AND (? = '' OR status = ?)
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query,
		filter.Model, filter.Model,
		filter.Query, filter.Query,
		filter.RunID, filter.RunID,
		filter.Status, filter.Status,
		limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := []*Result{}
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// DeleteResult deletes a result by ID
func (s *SQLiteStore) DeleteResult(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// DeleteResults deletes results created before the given time and returns
// how many were removed.
func (s *SQLiteStore) DeleteResults(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete results: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
