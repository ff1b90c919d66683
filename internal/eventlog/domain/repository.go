package domain

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event_not_found")

// Repository persists the payment event ledger.
type Repository interface {
	// InsertPending records a new event in the pending state. Returns false
	// without error when a record with the same payment id already exists.
	InsertPending(ctx context.Context, record *EventRecord) (bool, error)

	Get(ctx context.Context, paymentID string) (*EventRecord, error)

	MarkProcessing(ctx context.Context, paymentID string) error
	MarkResult(ctx context.Context, paymentID string, result Result) error
	BumpRetry(ctx context.Context, paymentID string) error

	// IsProcessed reports whether the payment already reached a terminal
	// state.
	IsProcessed(ctx context.Context, paymentID string) (bool, error)

	ListFailed(ctx context.Context, limit int) ([]EventRecord, error)
	Stats(ctx context.Context) (Stats, error)

	// Cleanup deletes terminal records created before the cutoff and
	// returns the number removed.
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}
