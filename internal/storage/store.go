// Package storage provides abstractions for the split-record mirror.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitpilot/internal/models"
)

// ErrNotFound is returned when no record exists for the given key.
var ErrNotFound = errors.New("split record not found")

// Store defines the interface for mirror persistence.
// This abstraction allows swapping storage backends (SQLite, MongoDB)
// without changing the service layer. The mirror is a reporting copy of
// what the ledger already stores; writes are fire-and-forget relative to
// the ledger call and a failure here never rolls back a created expense.
type Store interface {
	// SaveSplit persists a record, replacing any existing record for the
	// same ledger expense id. ID and timestamps are populated by the store.
	SaveSplit(ctx context.Context, record *models.SplitRecord) error

	// GetSplit retrieves a record by ledger expense id.
	GetSplit(ctx context.Context, ledgerExpenseID string) (*models.SplitRecord, error)

	// ListSplitsByGroup retrieves all records for a group, newest first.
	ListSplitsByGroup(ctx context.Context, groupID string) ([]*models.SplitRecord, error)

	// Close releases any resources held by the store.
	Close() error
}
