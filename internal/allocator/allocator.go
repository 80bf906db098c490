// Package allocator computes per-member owed amounts from item-level
// member assignments, reconciled penny-exact against the bill total.
package allocator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitpilot/internal/models"
)

// ErrInvalidInput marks malformed allocator arguments (negative price,
// missing payer). Callers reject these before any external call is made.
var ErrInvalidInput = errors.New("invalid input")

// currencyPlaces is the number of decimal places for currency amounts.
const currencyPlaces = 2

// Allocate computes how much each member owes for the given items.
//
// Each item's price is divided evenly among its assigned members; items with
// no members contribute nothing (the uncovered amount is not spread over the
// rest, callers warn about the gap). Per-member totals are accumulated across
// all items in exact decimal arithmetic and rounded to 2 decimals once, after
// full accumulation, using round half away from zero.
//
// The bill total is authoritative and supplied independently of the item
// prices. Whatever residual the independent per-member rounding leaves
// against round(total, 2) is assigned entirely to paidBy (who gets a zero
// entry first if no item named them), so the returned amounts always sum to
// the rounded total exactly.
func Allocate(items []models.Item, total decimal.Decimal, paidBy string) (map[string]decimal.Decimal, error) {
	if paidBy == "" {
		return nil, fmt.Errorf("%w: paid_by is required", ErrInvalidInput)
	}
	for _, item := range items {
		if item.Price.IsNegative() {
			return nil, fmt.Errorf("%w: item %q has negative price %s", ErrInvalidInput, item.Name, item.Price)
		}
	}

	// Accumulate raw shares in exact decimal arithmetic.
	raw := make(map[string]decimal.Decimal)
	for _, item := range items {
		k := len(item.Members)
		if k == 0 {
			continue
		}
		share := item.Price.Div(decimal.NewFromInt(int64(k)))
		for _, member := range item.Members {
			raw[member] = raw[member].Add(share)
		}
	}

	// Round each member's total independently, then reconcile the residual
	// against the authoritative total by assigning it to the payer.
	splits := make(map[string]decimal.Decimal, len(raw)+1)
	sum := decimal.Zero
	for member, amount := range raw {
		rounded := amount.Round(currencyPlaces)
		splits[member] = rounded
		sum = sum.Add(rounded)
	}

	roundedTotal := total.Round(currencyPlaces)
	residual := roundedTotal.Sub(sum)
	splits[paidBy] = splits[paidBy].Add(residual).Round(currencyPlaces)

	return splits, nil
}

// Divergence returns the absolute difference between the authoritative total
// and the sum of item prices. The two may legitimately differ (tip, rounding,
// capture discrepancy); callers warn when the gap exceeds one cent.
func Divergence(items []models.Item, total decimal.Decimal) decimal.Decimal {
	return total.Sub(models.ItemsTotal(items)).Abs()
}
