// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitpilot/internal/models"
	"github.com/mmynk/splitpilot/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSplit persists a record, replacing any existing record for the same
// ledger expense id.
func (s *SQLiteStore) SaveSplit(ctx context.Context, record *models.SplitRecord) error {
	if record.LedgerExpenseID == "" {
		return fmt.Errorf("ledger expense id required")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if record.CreatedAt == 0 {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Re-saving the same expense replaces the previous snapshot; keep the
	// original created_at when one exists.
	var prevCreated int64
	err = tx.QueryRowContext(ctx,
		"SELECT created_at FROM splits WHERE ledger_expense_id = ?",
		record.LedgerExpenseID,
	).Scan(&prevCreated)
	if err == nil {
		record.CreatedAt = prevCreated
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM splits WHERE ledger_expense_id = ?",
			record.LedgerExpenseID,
		); err != nil {
			return fmt.Errorf("failed to replace split: %w", err)
		}
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing split: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO splits (id, ledger_expense_id, group_id, group_name, description, total, paid_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.LedgerExpenseID, record.GroupID, record.GroupName,
		record.Description, record.Total.String(), record.PaidBy,
		record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert split: %w", err)
	}

	for i, item := range record.Items {
		members, err := json.Marshal(item.Members)
		if err != nil {
			return fmt.Errorf("failed to encode item members: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO split_items (id, split_id, position, name, price, members) VALUES (?, ?, ?, ?, ?, ?)",
			uuid.New().String(), record.ID, i, item.Name, item.Price.String(), string(members),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	for member, amount := range record.MemberSplits {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO member_splits (split_id, member, amount) VALUES (?, ?, ?)",
			record.ID, member, amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert member split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSplit retrieves a record by ledger expense id, including items and
// member splits.
func (s *SQLiteStore) GetSplit(ctx context.Context, ledgerExpenseID string) (*models.SplitRecord, error) {
	record := &models.SplitRecord{}
	var total string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, ledger_expense_id, group_id, group_name, description, total, paid_by, created_at, updated_at
		 FROM splits WHERE ledger_expense_id = ?`,
		ledgerExpenseID,
	).Scan(&record.ID, &record.LedgerExpenseID, &record.GroupID, &record.GroupName,
		&record.Description, &total, &record.PaidBy, &record.CreatedAt, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, ledgerExpenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	if record.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to parse total: %w", err)
	}

	if err := s.loadItems(ctx, record); err != nil {
		return nil, err
	}
	if err := s.loadMemberSplits(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListSplitsByGroup retrieves all records for a group, newest first.
func (s *SQLiteStore) ListSplitsByGroup(ctx context.Context, groupID string) ([]*models.SplitRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ledger_expense_id, group_id, group_name, description, total, paid_by, created_at, updated_at
		 FROM splits WHERE group_id = ? ORDER BY created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var records []*models.SplitRecord
	for rows.Next() {
		record := &models.SplitRecord{}
		var total string
		if err := rows.Scan(&record.ID, &record.LedgerExpenseID, &record.GroupID, &record.GroupName,
			&record.Description, &total, &record.PaidBy, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		if record.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("failed to parse total: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	for _, record := range records {
		if err := s.loadItems(ctx, record); err != nil {
			return nil, err
		}
		if err := s.loadMemberSplits(ctx, record); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, record *models.SplitRecord) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, price, members FROM split_items WHERE split_id = ? ORDER BY position",
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.Item
		var price, members string
		if err := rows.Scan(&item.Name, &price, &members); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("failed to parse item price: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &item.Members); err != nil {
			return fmt.Errorf("failed to decode item members: %w", err)
		}
		record.Items = append(record.Items, item)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadMemberSplits(ctx context.Context, record *models.SplitRecord) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member, amount FROM member_splits WHERE split_id = ? ORDER BY member",
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get member splits: %w", err)
	}
	defer rows.Close()

	record.MemberSplits = make(map[string]decimal.Decimal)
	for rows.Next() {
		var member, amount string
		if err := rows.Scan(&member, &amount); err != nil {
			return fmt.Errorf("failed to scan member split: %w", err)
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("failed to parse member amount: %w", err)
		}
		record.MemberSplits[member] = parsed
	}
	return rows.Err()
}
