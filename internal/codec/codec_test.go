package codec

import (
	"errors"
	"strings"
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

func sampleItems() []models.Item {
	return []models.Item{
		{Name: "Pizza", Price: dec("20.00"), Members: []string{"A", "B"}},
		{Name: "Soda", Price: dec("3.00"), Members: []string{"A"}},
	}
}

func assertItemsEqual(t *testing.T, got, want []models.Item) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name {
			t.Errorf("item %d name = %q, want %q", i, got[i].Name, want[i].Name)
		}
		if !got[i].Price.Equal(want[i].Price) {
			t.Errorf("item %d price = %s, want %s", i, got[i].Price, want[i].Price)
		}
		if len(got[i].Members) != len(want[i].Members) {
			t.Fatalf("item %d has %d members, want %d", i, len(got[i].Members), len(want[i].Members))
		}
		for j := range want[i].Members {
			if got[i].Members[j] != want[i].Members[j] {
				t.Errorf("item %d member %d = %q, want %q", i, j, got[i].Members[j], want[i].Members[j])
			}
		}
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	items := sampleItems()

	comment, err := Encode("Dinner at Mario's", items, "123")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.HasPrefix(comment, "EXPENSE_ID:123\n") {
		t.Errorf("marker line must come first, got %q", comment)
	}

	d, err := Decode(comment)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.ExpenseID != "123" {
		t.Errorf("ExpenseID = %q, want 123", d.ExpenseID)
	}
	if d.Note != "Dinner at Mario's" {
		t.Errorf("Note = %q, want Dinner at Mario's", d.Note)
	}
	assertItemsEqual(t, d.Items, items)
}

func TestEncodeDecode_NoExpenseID(t *testing.T) {
	comment, err := Encode("Itemized bill split", sampleItems(), "")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if strings.Contains(comment, "EXPENSE_ID:") {
		t.Errorf("comment without id must carry no marker: %q", comment)
	}

	d, err := Decode(comment)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.ExpenseID != "" {
		t.Errorf("ExpenseID = %q, want empty", d.ExpenseID)
	}
	assertItemsEqual(t, d.Items, sampleItems())
}

func TestDecode_NoPayload(t *testing.T) {
	// A human-written comment predating the payload convention.
	d, err := Decode("paid cash, will settle later")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.ExpenseID != "" {
		t.Errorf("ExpenseID = %q, want empty", d.ExpenseID)
	}
	if d.Items != nil {
		t.Errorf("Items = %v, want nil", d.Items)
	}
	if d.Note != "paid cash, will settle later" {
		t.Errorf("Note = %q", d.Note)
	}
}

func TestDecode_MarkerOnly(t *testing.T) {
	d, err := Decode("EXPENSE_ID:987")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.ExpenseID != "987" {
		t.Errorf("ExpenseID = %q, want 987", d.ExpenseID)
	}
	if d.Items != nil {
		t.Errorf("Items = %v, want nil", d.Items)
	}
}

func TestDecode_MalformedPayload(t *testing.T) {
	_, err := Decode("note\n---ITEMDATA---\nnot json at all")
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !errors.Is(err, ErrCodec) {
		t.Errorf("error = %v, want ErrCodec", err)
	}
}

func TestEncode_ReplacesStaleMarker(t *testing.T) {
	items := sampleItems()

	first, err := Encode("weekend trip", items, "123")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	d, err := Decode(first)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// Feed the full decoded header back through, the way an update flow
	// does after loading an annotated expense.
	staleNote := "EXPENSE_ID:" + d.ExpenseID + "\n" + d.Note
	second, err := Encode(staleNote, d.Items, "456")
	if err != nil {
		t.Fatalf("re-Encode failed: %v", err)
	}

	if got := strings.Count(second, "EXPENSE_ID:"); got != 1 {
		t.Errorf("comment has %d marker lines, want exactly 1:\n%s", got, second)
	}
	d2, err := Decode(second)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d2.ExpenseID != "456" {
		t.Errorf("ExpenseID = %q, want 456", d2.ExpenseID)
	}
	if d2.Note != "weekend trip" {
		t.Errorf("Note = %q, want weekend trip", d2.Note)
	}
}

func TestDecode_ForeignNumberFormat(t *testing.T) {
	// Payloads written by other clients carry bare JSON numbers for prices;
	// decoding must accept them alongside our quoted form.
	d, err := Decode("split\n---ITEMDATA---\n[{\"name\":\"Naan\",\"price\":4.5,\"members\":[\"A\"]}]")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(d.Items) != 1 || !d.Items[0].Price.Equal(dec("4.5")) {
		t.Errorf("Items = %+v, want one Naan at 4.5", d.Items)
	}
}

func TestEncode_SeparatorInName(t *testing.T) {
	items := []models.Item{{Name: "bad---ITEMDATA---name", Price: dec("1.00"), Members: []string{"A"}}}
	if _, err := Encode("note", items, ""); !errors.Is(err, ErrCodec) {
		t.Errorf("error = %v, want ErrCodec", err)
	}
}
