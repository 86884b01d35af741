package stores

import (
	"context"
	"database/sql"
	"time"
)

// ResultStatus is the outcome of a query run.
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusFailed  ResultStatus = "failed"
)

// Result is one stored query run.
type Result struct {
	ID             string        `json:"id"`
	RunID          string        `json:"run_id"` // groups the queries of one eval
	Model          string        `json:"model"`
	Query          string        `json:"query"`
	Kind           string        `json:"kind"`
	Target         string        `json:"target"`
	Representation string        `json:"representation"`
	Status         ResultStatus  `json:"status"`
	ErrorCode      *string       `json:"error_code,omitempty"`
	Error          *string       `json:"error,omitempty"`
	Paths          int64         `json:"paths"`
	Pruned         int64         `json:"pruned"`
	Samples        int64         `json:"samples"`
	Duration       time.Duration `json:"duration"`
	Outcome        string        `json:"outcome"` // JSON blob
	CreatedAt      time.Time     `json:"created_at"`
}

// ResultFilter selects stored results. Empty fields match everything.
type ResultFilter struct {
	Model  string
	Query  string
	RunID  string
	Status ResultStatus
	Limit  int
	Offset int
}

// Store defines the interface for the result history
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Result operations
	SaveResult(ctx context.Context, result *Result) error
	SaveResults(ctx context.Context, results []*Result) error
	GetResult(ctx context.Context, id string) (*Result, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]*Result, error)
	DeleteResult(ctx context.Context, id string) error
	DeleteResults(ctx context.Context, before time.Time) (int64, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
