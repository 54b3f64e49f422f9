package store

import (
	"context"
	"errors"

	"iatlab/internal/models"
)

// Storage-layer conditions the handlers translate into distinct HTTP statuses.
var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("duplicate record")
	ErrUnavailable = errors.New("storage unavailable")
)

// ListQuery selects a page of results, optionally filtered by user.
type ListQuery struct {
	Page   int64
	Limit  int64
	UserID string
}

// Counts holds the aggregate numbers for the count endpoint. Today counts
// records created since local midnight.
type Counts struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
}

// Store persists completed test results. Implementations assign the record
// id and created/updated timestamps on insert; records are never mutated or
// deleted afterwards.
type Store interface {
	// Insert persists a new record, filling in its ID, CreatedAt and
	// UpdatedAt. Returns ErrDuplicate on an identifier collision and
	// ErrUnavailable when the backing database cannot be reached.
	Insert(ctx context.Context, record *models.TestResult) error

	// List returns one page of records ordered by creation time descending,
	// with the free-form surveyResponses/deviceInfo payloads omitted, plus
	// the total number of matching records.
	List(ctx context.Context, q ListQuery) ([]models.TestResult, int64, error)

	// GetByID returns the full record, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.TestResult, error)

	// Counts returns the total record count and the count created today.
	Counts(ctx context.Context) (Counts, error)

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error

	// Probe performs a write-read-delete round trip to confirm end-to-end
	// storage connectivity beyond mere reachability.
	Probe(ctx context.Context) error

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}
