// Package ledger is a client for the external expense ledger (a
// Splitwise-style REST API). The service layer only shapes data going in
// and parses the comment coming out; transport and auth live here, behind
// the Client interface so tests and alternative backends can swap in.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUpstream marks a ledger call that failed, with the ledger's reason
// passed through opaquely. It is surfaced to the caller, never swallowed.
var ErrUpstream = errors.New("ledger request failed")

// Member is a person known to the ledger: the current user or a friend.
// Display names map 1:1 to stable numeric account ids.
type Member struct {
	ID        int64
	FirstName string
}

// Group is an expense group in the ledger.
type Group struct {
	ID   int64
	Name string
}

// Share is one member's slice of an expense: what they fronted and what
// they owe. Amounts are rendered as 2-decimal strings on the wire.
type Share struct {
	UserID    int64
	FirstName string
	PaidShare decimal.Decimal
	OwedShare decimal.Decimal
}

// Expense is the durable record owned by the ledger. Details carries the
// free-text comment that doubles as the item payload side channel.
type Expense struct {
	ID          string
	Cost        decimal.Decimal
	Description string
	Details     string
	GroupID     int64
	GroupName   string
	Users       []Share
}

// Client is the narrow interface the service layer depends on.
type Client interface {
	// CurrentUser returns the member owning the API key.
	CurrentUser(ctx context.Context) (Member, error)

	// Friends returns the current user's connections.
	Friends(ctx context.Context) ([]Member, error)

	// Groups returns the groups the current user belongs to.
	Groups(ctx context.Context) ([]Group, error)

	// CreateExpense creates an expense and returns the assigned id.
	CreateExpense(ctx context.Context, expense *Expense) (string, error)

	// UpdateExpense replaces the expense with the given id.
	UpdateExpense(ctx context.Context, id string, expense *Expense) error

	// GetExpense retrieves an expense by id.
	GetExpense(ctx context.Context, id string) (*Expense, error)
}
