package allocator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitpilot/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name         string
		items        []models.Item
		total        string
		paidBy       string
		wantErr      bool
		validateFunc func(t *testing.T, splits map[string]decimal.Decimal)
	}{
		{
			name: "no residual needed",
			items: []models.Item{
				{Name: "Pizza", Price: dec("20.00"), Members: []string{"A", "B"}},
				{Name: "Soda", Price: dec("3.00"), Members: []string{"A"}},
			},
			total:  "23.00",
			paidBy: "A",
			validateFunc: func(t *testing.T, splits map[string]decimal.Decimal) {
				// Pizza split 10/10, Soda 3 to A, sum 23 exactly.
				if !splits["A"].Equal(dec("13.00")) {
					t.Errorf("A = %s, want 13.00", splits["A"])
				}
				if !splits["B"].Equal(dec("10.00")) {
					t.Errorf("B = %s, want 10.00", splits["B"])
				}
			},
		},
		{
			name: "residual penny goes to payer",
			items: []models.Item{
				{Name: "Tapas", Price: dec("10.00"), Members: []string{"A", "B", "C"}},
			},
			total:  "10.00",
			paidBy: "A",
			validateFunc: func(t *testing.T, splits map[string]decimal.Decimal) {
				// Raw shares 3.333..., rounded to 3.33 each, sum 9.99.
				// Residual 0.01 lands on the payer.
				if !splits["A"].Equal(dec("3.34")) {
					t.Errorf("A = %s, want 3.34", splits["A"])
				}
				if !splits["B"].Equal(dec("3.33")) {
					t.Errorf("B = %s, want 3.33", splits["B"])
				}
				if !splits["C"].Equal(dec("3.33")) {
					t.Errorf("C = %s, want 3.33", splits["C"])
				}
			},
		},
		{
			name: "unassigned item contributes nothing",
			items: []models.Item{
				{Name: "Pizza", Price: dec("20.00"), Members: []string{"A", "B"}},
				{Name: "Mystery", Price: dec("5.00"), Members: nil},
			},
			total:  "25.00",
			paidBy: "A",
			validateFunc: func(t *testing.T, splits map[string]decimal.Decimal) {
				// The unassigned 5.00 is not split; it shows up as residual
				// on the payer, not spread over everyone.
				if !splits["A"].Equal(dec("15.00")) {
					t.Errorf("A = %s, want 15.00", splits["A"])
				}
				if !splits["B"].Equal(dec("10.00")) {
					t.Errorf("B = %s, want 10.00", splits["B"])
				}
			},
		},
		{
			name: "payer with no assigned items gets residual on a zero share",
			items: []models.Item{
				{Name: "Beer", Price: dec("10.00"), Members: []string{"B", "C", "D"}},
			},
			total:  "10.00",
			paidBy: "A",
			validateFunc: func(t *testing.T, splits map[string]decimal.Decimal) {
				if !splits["A"].Equal(dec("0.01")) {
					t.Errorf("A = %s, want 0.01", splits["A"])
				}
				for _, m := range []string{"B", "C", "D"} {
					if !splits[m].Equal(dec("3.33")) {
						t.Errorf("%s = %s, want 3.33", m, splits[m])
					}
				}
			},
		},
		{
			name:   "no items splits nothing but total still reconciles",
			items:  nil,
			total:  "12.50",
			paidBy: "A",
			validateFunc: func(t *testing.T, splits map[string]decimal.Decimal) {
				if !splits["A"].Equal(dec("12.50")) {
					t.Errorf("A = %s, want 12.50", splits["A"])
				}
			},
		},
		{
			name: "total diverging from item sum is honored",
			items: []models.Item{
				{Name: "Curry", Price: dec("18.00"), Members: []string{"A", "B"}},
			},
			total:  "20.00", // tip on top of the captured items
			paidBy: "B",
			validateFunc: func(t *testing.T, splits map[string]decimal.Decimal) {
				if !splits["A"].Equal(dec("9.00")) {
					t.Errorf("A = %s, want 9.00", splits["A"])
				}
				if !splits["B"].Equal(dec("11.00")) {
					t.Errorf("B = %s, want 11.00", splits["B"])
				}
			},
		},
		{
			name: "negative price rejected",
			items: []models.Item{
				{Name: "Refund", Price: dec("-2.00"), Members: []string{"A"}},
			},
			total:   "10.00",
			paidBy:  "A",
			wantErr: true,
		},
		{
			name:    "missing payer rejected",
			items:   []models.Item{{Name: "Pizza", Price: dec("10.00"), Members: []string{"A"}}},
			total:   "10.00",
			paidBy:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits, err := Allocate(tt.items, dec(tt.total), tt.paidBy)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Allocate failed: %v", err)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, splits)
			}

			// Every valid allocation sums to the rounded total exactly.
			sum := decimal.Zero
			for _, amount := range splits {
				sum = sum.Add(amount)
			}
			if want := dec(tt.total).Round(2); !sum.Equal(want) {
				t.Errorf("splits sum to %s, want %s", sum, want)
			}
		})
	}
}

// TestAllocate_PennyExact drives awkward prices and member counts through the
// allocator and checks the reconciliation invariant holds every time.
func TestAllocate_PennyExact(t *testing.T) {
	members := []string{"A", "B", "C", "D", "E", "F", "G"}
	prices := []string{"0.01", "0.10", "1.99", "3.33", "7.77", "10.00", "99.99", "123.45", "1000.01"}

	for kItems := 1; kItems <= len(prices); kItems++ {
		for kMembers := 1; kMembers <= len(members); kMembers++ {
			var items []models.Item
			total := decimal.Zero
			for i := 0; i < kItems; i++ {
				price := dec(prices[i])
				items = append(items, models.Item{
					Name:    "item",
					Price:   price,
					Members: members[:kMembers],
				})
				total = total.Add(price)
			}

			splits, err := Allocate(items, total, members[0])
			if err != nil {
				t.Fatalf("Allocate(%d items, %d members) failed: %v", kItems, kMembers, err)
			}

			sum := decimal.Zero
			for _, amount := range splits {
				sum = sum.Add(amount)
			}
			if !sum.Equal(total.Round(2)) {
				t.Errorf("%d items / %d members: sum %s != total %s", kItems, kMembers, sum, total.Round(2))
			}
		}
	}
}

func TestDivergence(t *testing.T) {
	items := []models.Item{
		{Name: "Pizza", Price: dec("20.00"), Members: []string{"A"}},
		{Name: "Soda", Price: dec("3.00"), Members: []string{"B"}},
	}
	if d := Divergence(items, dec("23.00")); !d.IsZero() {
		t.Errorf("Divergence = %s, want 0", d)
	}
	if d := Divergence(items, dec("25.50")); !d.Equal(dec("2.50")) {
		t.Errorf("Divergence = %s, want 2.50", d)
	}
}
