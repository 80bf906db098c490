package models

import "github.com/shopspring/decimal"

// Item represents a single line item on a bill.
// Items can be shared among multiple members.
type Item struct {
	// Name is the short display label for the item (e.g., "Pizza").
	// By convention kept to 10 characters or fewer for downstream
	// cost tracking; not enforced structurally.
	Name string `json:"name"`

	// Price is the full price of this item, 2-decimal currency semantics.
	Price decimal.Decimal `json:"price"`

	// Members is the list of member names sharing this item.
	// The item is split equally among them. An empty list means the
	// item is unassigned and contributes nothing to any split.
	Members []string `json:"members"`
}

// ItemsTotal returns the sum of all item prices.
// The bill total is supplied independently and may legitimately differ;
// callers compare the two to warn about capture gaps.
func ItemsTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return total
}
