package models

import "github.com/shopspring/decimal"

// SplitRecord is the denormalized mirror of a created ledger expense,
// kept locally for reporting. The external ledger remains the system of
// record; mirror writes are fire-and-forget.
type SplitRecord struct {
	// ID is the unique identifier for the record (UUID format).
	ID string `json:"id"`
	// LedgerExpenseID is the expense identifier assigned by the external
	// ledger. Unique per record; records for the same expense are upserted.
	LedgerExpenseID string `json:"ledger_expense_id"`
	// GroupID is the ledger group the expense was filed under.
	GroupID string `json:"group_id"`
	// GroupName is the display name of the group at creation time.
	GroupName string `json:"group_name"`
	// Description is the expense description shown in the ledger.
	Description string `json:"description"`
	// Total is the authoritative bill total.
	Total decimal.Decimal `json:"total"`
	// PaidBy is the display name of the member who fronted the total.
	PaidBy string `json:"paid_by"`
	// Items are the line items the expense was split from.
	Items []Item `json:"items"`
	// MemberSplits maps member name to the amount they owe.
	// Sums to Total exactly; the payer carries the rounding residual.
	MemberSplits map[string]decimal.Decimal `json:"member_splits"`
	// CreatedAt is the Unix timestamp when the record was first written.
	CreatedAt int64 `json:"created_at"`
	// UpdatedAt is the Unix timestamp of the last write.
	UpdatedAt int64 `json:"updated_at"`
}
