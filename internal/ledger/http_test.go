package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestHTTPClient_CurrentUserAndFriends(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		switch r.URL.Path {
		case "/get_current_user":
			json.NewEncoder(w).Encode(map[string]any{
				"user": map[string]any{"id": 1, "first_name": "Alice"},
			})
		case "/get_friends":
			json.NewEncoder(w).Encode(map[string]any{
				"friends": []map[string]any{
					{"id": 2, "first_name": "Bob"},
					{"id": 3, "first_name": "Carol"},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")
	ctx := context.Background()

	user, err := client.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if user.ID != 1 || user.FirstName != "Alice" {
		t.Errorf("CurrentUser = %+v", user)
	}

	friends, err := client.Friends(ctx)
	if err != nil {
		t.Fatalf("Friends failed: %v", err)
	}
	if len(friends) != 2 || friends[0].FirstName != "Bob" {
		t.Errorf("Friends = %+v", friends)
	}
}

func TestHTTPClient_CreateExpense(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create_expense" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"expenses": []map[string]any{{"id": 98765}},
			"errors":   map[string]any{},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")
	id, err := client.CreateExpense(context.Background(), &Expense{
		Cost:        dec("23.00"),
		Description: "Dinner",
		Details:     "comment",
		GroupID:     42,
		Users: []Share{
			{UserID: 1, PaidShare: dec("23.00"), OwedShare: dec("13.00")},
			{UserID: 2, PaidShare: decimal.Zero, OwedShare: dec("10.00")},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if id != "98765" {
		t.Errorf("id = %q, want 98765", id)
	}

	if gotBody["cost"] != "23.00" {
		t.Errorf("cost = %v, want 23.00", gotBody["cost"])
	}
	if gotBody["users__0__paid_share"] != "23.00" {
		t.Errorf("users__0__paid_share = %v", gotBody["users__0__paid_share"])
	}
	if gotBody["users__1__owed_share"] != "10.00" {
		t.Errorf("users__1__owed_share = %v", gotBody["users__1__owed_share"])
	}
}

func TestHTTPClient_CreateExpense_LedgerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"expenses": []map[string]any{},
			"errors":   map[string]any{"base": []string{"The total of everyone's owed shares must equal the total cost"}},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")
	_, err := client.CreateExpense(context.Background(), &Expense{Cost: dec("1.00")})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
}

func TestHTTPClient_GetExpense(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_expense/98765" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"expense": map[string]any{
				"id":          98765,
				"cost":        "23.0",
				"description": "Dinner",
				"details":     "note\n---ITEMDATA---\n[]",
				"group_id":    42,
				"group_name":  "Roommates",
				"users": []map[string]any{
					{"user": map[string]any{"id": 1, "first_name": "Alice"}, "paid_share": "23.0", "owed_share": "13.0"},
					{"user": map[string]any{"id": 2, "first_name": "Bob"}, "paid_share": "0.0", "owed_share": "10.0"},
				},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")
	expense, err := client.GetExpense(context.Background(), "98765")
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if expense.ID != "98765" || !expense.Cost.Equal(dec("23.00")) {
		t.Errorf("expense = %+v", expense)
	}
	if expense.GroupName != "Roommates" {
		t.Errorf("GroupName = %q", expense.GroupName)
	}
	if len(expense.Users) != 2 || expense.Users[0].FirstName != "Alice" {
		t.Fatalf("Users = %+v", expense.Users)
	}
	if !expense.Users[0].PaidShare.Equal(dec("23.00")) {
		t.Errorf("Alice paid_share = %s", expense.Users[0].PaidShare)
	}
}

func TestHTTPClient_ServerErrorSurfacesUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")
	if _, err := client.Groups(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}
