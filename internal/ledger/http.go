package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the production ledger API root.
const DefaultBaseURL = "https://secure.splitwise.com/api/v3.0"

const requestTimeout = 30 * time.Second

// HTTPClient implements Client against the ledger's REST API using
// bearer-key auth. Construct one per request with the caller's API key;
// nothing is cached between requests.
type HTTPClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a ledger client for the given API root and key.
// An empty baseURL selects the production endpoint.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: requestTimeout},
	}
}

// wire types

type wireMember struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
}

type wireShare struct {
	User      wireMember `json:"user"`
	PaidShare string     `json:"paid_share"`
	OwedShare string     `json:"owed_share"`
}

type wireExpense struct {
	ID          int64       `json:"id"`
	Cost        string      `json:"cost"`
	Description string      `json:"description"`
	Details     string      `json:"details"`
	GroupID     int64       `json:"group_id"`
	GroupName   string      `json:"group_name"`
	Users       []wireShare `json:"users"`
}

// CurrentUser returns the member owning the API key.
func (c *HTTPClient) CurrentUser(ctx context.Context) (Member, error) {
	var resp struct {
		User wireMember `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/get_current_user", nil, &resp); err != nil {
		return Member{}, err
	}
	return Member{ID: resp.User.ID, FirstName: resp.User.FirstName}, nil
}

// Friends returns the current user's connections.
func (c *HTTPClient) Friends(ctx context.Context) ([]Member, error) {
	var resp struct {
		Friends []wireMember `json:"friends"`
	}
	if err := c.do(ctx, http.MethodGet, "/get_friends", nil, &resp); err != nil {
		return nil, err
	}
	members := make([]Member, len(resp.Friends))
	for i, f := range resp.Friends {
		members[i] = Member{ID: f.ID, FirstName: f.FirstName}
	}
	return members, nil
}

// Groups returns the groups the current user belongs to.
func (c *HTTPClient) Groups(ctx context.Context) ([]Group, error) {
	var resp struct {
		Groups []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/get_groups", nil, &resp); err != nil {
		return nil, err
	}
	groups := make([]Group, len(resp.Groups))
	for i, g := range resp.Groups {
		groups[i] = Group{ID: g.ID, Name: g.Name}
	}
	return groups, nil
}

// CreateExpense creates an expense and returns the assigned id.
func (c *HTTPClient) CreateExpense(ctx context.Context, expense *Expense) (string, error) {
	var resp struct {
		Expenses []wireExpense   `json:"expenses"`
		Errors   json.RawMessage `json:"errors"`
	}
	if err := c.do(ctx, http.MethodPost, "/create_expense", expenseBody(expense), &resp); err != nil {
		return "", err
	}
	if err := ledgerErrors(resp.Errors); err != nil {
		return "", err
	}
	if len(resp.Expenses) == 0 {
		return "", fmt.Errorf("%w: create_expense returned no expense", ErrUpstream)
	}
	return strconv.FormatInt(resp.Expenses[0].ID, 10), nil
}

// UpdateExpense replaces the expense with the given id.
func (c *HTTPClient) UpdateExpense(ctx context.Context, id string, expense *Expense) error {
	var resp struct {
		Expenses []wireExpense   `json:"expenses"`
		Errors   json.RawMessage `json:"errors"`
	}
	if err := c.do(ctx, http.MethodPost, "/update_expense/"+id, expenseBody(expense), &resp); err != nil {
		return err
	}
	return ledgerErrors(resp.Errors)
}

// GetExpense retrieves an expense by id.
func (c *HTTPClient) GetExpense(ctx context.Context, id string) (*Expense, error) {
	var resp struct {
		Expense wireExpense `json:"expense"`
	}
	if err := c.do(ctx, http.MethodGet, "/get_expense/"+id, nil, &resp); err != nil {
		return nil, err
	}

	cost, err := decimal.NewFromString(resp.Expense.Cost)
	if err != nil {
		return nil, fmt.Errorf("%w: bad cost %q: %v", ErrUpstream, resp.Expense.Cost, err)
	}
	expense := &Expense{
		ID:          strconv.FormatInt(resp.Expense.ID, 10),
		Cost:        cost,
		Description: resp.Expense.Description,
		Details:     resp.Expense.Details,
		GroupID:     resp.Expense.GroupID,
		GroupName:   resp.Expense.GroupName,
	}
	for _, u := range resp.Expense.Users {
		paid, err := decimal.NewFromString(u.PaidShare)
		if err != nil {
			return nil, fmt.Errorf("%w: bad paid_share %q: %v", ErrUpstream, u.PaidShare, err)
		}
		owed, err := decimal.NewFromString(u.OwedShare)
		if err != nil {
			return nil, fmt.Errorf("%w: bad owed_share %q: %v", ErrUpstream, u.OwedShare, err)
		}
		expense.Users = append(expense.Users, Share{
			UserID:    u.User.ID,
			FirstName: u.User.FirstName,
			PaidShare: paid,
			OwedShare: owed,
		})
	}
	return expense, nil
}

// expenseBody flattens an expense into the ledger's create/update request
// shape: scalar fields plus indexed users__N__* keys.
func expenseBody(expense *Expense) map[string]any {
	body := map[string]any{
		"cost":        expense.Cost.StringFixed(2),
		"description": expense.Description,
		"details":     expense.Details,
		"group_id":    expense.GroupID,
	}
	for i, share := range expense.Users {
		prefix := fmt.Sprintf("users__%d__", i)
		body[prefix+"user_id"] = share.UserID
		body[prefix+"paid_share"] = share.PaidShare.StringFixed(2)
		body[prefix+"owed_share"] = share.OwedShare.StringFixed(2)
	}
	return body
}

// ledgerErrors converts a non-empty errors payload into ErrUpstream with
// the ledger's reason text attached.
func ledgerErrors(raw json.RawMessage) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" || trimmed == "[]" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUpstream, trimmed)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body map[string]any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrUpstream, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUpstream, method, path, resp.StatusCode, snippet(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}

func snippet(data []byte) string {
	const max = 256
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
