// Package service orchestrates one bill-splitting session: allocate the
// split, shape the ledger expense, run the two-phase create-then-annotate
// dance, and mirror the result for reporting.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitpilot/internal/allocator"
	"github.com/mmynk/splitpilot/internal/codec"
	"github.com/mmynk/splitpilot/internal/extract"
	"github.com/mmynk/splitpilot/internal/ledger"
	"github.com/mmynk/splitpilot/internal/metrics"
	"github.com/mmynk/splitpilot/internal/models"
	"github.com/mmynk/splitpilot/internal/storage"
	"github.com/mmynk/splitpilot/internal/vision"
)

// divergenceWarnThreshold is the item-sum-vs-total gap above which a
// warning is attached to the response.
var divergenceWarnThreshold = decimal.NewFromFloat(0.01)

// defaultNote is used when the caller supplies no comment text,
// matching the reference behavior.
const defaultNote = "Itemized bill split"

// LedgerFactory builds a ledger client for a caller-supplied API key.
// Keys arrive per request and are never stored server-side.
type LedgerFactory func(apiKey string) ledger.Client

// VisionFactory builds an AI client for a caller-supplied API key.
type VisionFactory func(apiKey string) vision.Analyzer

// ExpenseService composes the allocator, codec, ledger, AI, and mirror
// collaborators behind the HTTP API.
type ExpenseService struct {
	store     storage.Store
	newLedger LedgerFactory
	newVision VisionFactory
}

// NewExpenseService creates a service with the given mirror store and
// collaborator factories.
func NewExpenseService(store storage.Store, newLedger LedgerFactory, newVision VisionFactory) *ExpenseService {
	return &ExpenseService{store: store, newLedger: newLedger, newVision: newVision}
}

// Roster maps member display names to ledger account ids.
type Roster struct {
	CurrentUser string
	Members     []string
	NameToID    map[string]int64
}

// ExpenseRequest is the input for creating or updating an itemized expense.
type ExpenseRequest struct {
	Items       []models.Item
	Total       decimal.Decimal
	PaidBy      string
	GroupName   string
	Description string
	Note        string
}

// ExpenseResult is the outcome of a create or update.
type ExpenseResult struct {
	ExpenseID string
	Splits    map[string]decimal.Decimal
	// Warning is set when the item prices diverge from the total by more
	// than a cent; the caller is responsible for showing the gap.
	Warning string
}

// LoadedExpense is an expense fetched back from the ledger with its
// comment payload decoded.
type LoadedExpense struct {
	ExpenseID   string
	Description string
	Note        string
	Total       decimal.Decimal
	GroupName   string
	PaidBy      string
	Members     []string
	// Items is nil when the comment carries no parseable payload.
	Items []models.Item
}

// Initialize probes the supplied ledger key and returns the key owner's name.
func (s *ExpenseService) Initialize(ctx context.Context, ledgerKey string) (string, error) {
	user, err := s.newLedger(ledgerKey).CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.FirstName, nil
}

// GetRoster returns the current user and friends as a name-to-id mapping.
func (s *ExpenseService) GetRoster(ctx context.Context, ledgerKey string) (*Roster, error) {
	return rosterFromClient(ctx, s.newLedger(ledgerKey))
}

func rosterFromClient(ctx context.Context, lc ledger.Client) (*Roster, error) {
	user, err := lc.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	friends, err := lc.Friends(ctx)
	if err != nil {
		return nil, err
	}

	roster := &Roster{
		CurrentUser: user.FirstName,
		NameToID:    map[string]int64{user.FirstName: user.ID},
		Members:     []string{user.FirstName},
	}
	for _, f := range friends {
		if _, exists := roster.NameToID[f.FirstName]; exists {
			slog.Warn("duplicate member name in roster, keeping first", "name", f.FirstName)
			continue
		}
		roster.NameToID[f.FirstName] = f.ID
		roster.Members = append(roster.Members, f.FirstName)
	}
	return roster, nil
}

// GetGroups returns the ledger groups as a name-to-id mapping.
func (s *ExpenseService) GetGroups(ctx context.Context, ledgerKey string) (map[string]int64, error) {
	groups, err := s.newLedger(ledgerKey).Groups(ctx)
	if err != nil {
		return nil, err
	}
	nameToID := make(map[string]int64, len(groups))
	for _, g := range groups {
		nameToID[g.Name] = g.ID
	}
	return nameToID, nil
}

// AnalyzeBills runs receipt images through the vision model and coerces
// the output into item candidates. Malformed model output degrades to an
// empty list; only transport failures error.
func (s *ExpenseService) AnalyzeBills(ctx context.Context, visionKey string, images []vision.Media) ([]models.Item, error) {
	text, err := s.newVision(visionKey).AnalyzeBills(ctx, images)
	if err != nil {
		return nil, err
	}
	items := toModelItems(extract.Items(text))
	if len(items) == 0 {
		metrics.ExtractionEmpty.Inc()
		slog.Warn("bill analysis produced no items", "images", len(images))
	}
	return items, nil
}

// ProcessVoice transcribes a recording and extracts item candidates with
// member assignments constrained to the allow-list.
func (s *ExpenseService) ProcessVoice(ctx context.Context, visionKey string, audio vision.Media, allowed []string) (string, []models.Item, error) {
	vc := s.newVision(visionKey)
	transcript, err := vc.Transcribe(ctx, audio)
	if err != nil {
		return "", nil, err
	}
	text, err := vc.ItemsFromTranscript(ctx, transcript, allowed)
	if err != nil {
		return transcript, nil, err
	}
	items := toModelItems(extract.ItemsWithMembers(text, allowed))
	if len(items) == 0 {
		metrics.ExtractionEmpty.Inc()
		slog.Warn("voice processing produced no items", "transcript_len", len(transcript))
	}
	return transcript, items, nil
}

// CreateItemizedExpense validates and allocates the split, creates the
// ledger expense, then updates it once to embed the assigned id into its
// own comment (the id does not exist until after creation). If that second
// step fails, the result carries the id and the error is ErrPartialSuccess.
// The mirror write happens after ledger success and never fails the call.
func (s *ExpenseService) CreateItemizedExpense(ctx context.Context, ledgerKey string, req *ExpenseRequest) (*ExpenseResult, error) {
	// Local contract violations are rejected before any external call.
	splits, err := allocator.Allocate(req.Items, req.Total, req.PaidBy)
	if err != nil {
		return nil, err
	}
	comment, err := codec.Encode(noteOrDefault(req.Note), req.Items, "")
	if err != nil {
		return nil, err
	}

	lc := s.newLedger(ledgerKey)
	expense, groupID, err := s.shapeExpense(ctx, lc, req, splits, comment)
	if err != nil {
		return nil, err
	}

	result := &ExpenseResult{Splits: splits, Warning: divergenceWarning(req)}

	expenseID, err := lc.CreateExpense(ctx, expense)
	if err != nil {
		return nil, err
	}
	result.ExpenseID = expenseID
	metrics.ExpensesCreated.Inc()
	slog.Info("expense created", "expense_id", expenseID, "group", req.GroupName, "total", req.Total)

	s.mirror(ctx, expenseID, groupID, req, splits)

	// Second phase: annotate the comment with the ledger-assigned id.
	annotated, err := codec.Encode(noteOrDefault(req.Note), req.Items, expenseID)
	if err == nil {
		expense.Details = annotated
		err = lc.UpdateExpense(ctx, expenseID, expense)
	}
	if err != nil {
		metrics.PartialAnnotations.Inc()
		slog.Error("expense annotation failed", "expense_id", expenseID, "error", err)
		return result, fmt.Errorf("%w: expense %s: %v", ErrPartialSuccess, expenseID, err)
	}

	return result, nil
}

// UpdateItemizedExpense re-shapes an existing expense with a known id.
// The comment is encoded with the id up front, so no second phase is needed.
func (s *ExpenseService) UpdateItemizedExpense(ctx context.Context, ledgerKey, expenseID string, req *ExpenseRequest) (*ExpenseResult, error) {
	if expenseID == "" {
		return nil, fmt.Errorf("%w: expense id required", allocator.ErrInvalidInput)
	}
	splits, err := allocator.Allocate(req.Items, req.Total, req.PaidBy)
	if err != nil {
		return nil, err
	}
	comment, err := codec.Encode(noteOrDefault(req.Note), req.Items, expenseID)
	if err != nil {
		return nil, err
	}

	lc := s.newLedger(ledgerKey)
	expense, groupID, err := s.shapeExpense(ctx, lc, req, splits, comment)
	if err != nil {
		return nil, err
	}
	if err := lc.UpdateExpense(ctx, expenseID, expense); err != nil {
		return nil, err
	}
	slog.Info("expense updated", "expense_id", expenseID, "group", req.GroupName)

	s.mirror(ctx, expenseID, groupID, req, splits)

	return &ExpenseResult{ExpenseID: expenseID, Splits: splits, Warning: divergenceWarning(req)}, nil
}

// LoadExpense fetches an expense and decodes its comment payload. An
// unparseable payload degrades to nil items; the header still returns.
func (s *ExpenseService) LoadExpense(ctx context.Context, ledgerKey, expenseID string) (*LoadedExpense, error) {
	expense, err := s.newLedger(ledgerKey).GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	decoded, err := codec.Decode(expense.Details)
	if err != nil {
		slog.Warn("expense comment payload unparseable, returning header only",
			"expense_id", expenseID, "error", err)
		decoded.Items = nil
	}

	loaded := &LoadedExpense{
		ExpenseID:   expense.ID,
		Description: expense.Description,
		Note:        decoded.Note,
		Total:       expense.Cost,
		GroupName:   expense.GroupName,
		Items:       decoded.Items,
	}
	for _, share := range expense.Users {
		loaded.Members = append(loaded.Members, share.FirstName)
		if share.PaidShare.IsPositive() {
			loaded.PaidBy = share.FirstName
		}
	}
	return loaded, nil
}

// ListSplits returns the mirror's records for a group.
func (s *ExpenseService) ListSplits(ctx context.Context, groupID string) ([]*models.SplitRecord, error) {
	return s.store.ListSplitsByGroup(ctx, groupID)
}

// shapeExpense resolves the roster and group, validates every member with
// a nonzero share, and builds the ledger expense with the payer fronting
// the full amount.
func (s *ExpenseService) shapeExpense(ctx context.Context, lc ledger.Client, req *ExpenseRequest, splits map[string]decimal.Decimal, comment string) (*ledger.Expense, int64, error) {
	roster, err := rosterFromClient(ctx, lc)
	if err != nil {
		return nil, 0, err
	}
	for _, member := range sortedMembers(splits) {
		if _, ok := roster.NameToID[member]; !ok {
			return nil, 0, fmt.Errorf("%w: member %q not found among friends", allocator.ErrInvalidInput, member)
		}
	}

	var groupID int64
	if req.GroupName != "" {
		groups, err := lc.Groups(ctx)
		if err != nil {
			return nil, 0, err
		}
		found := false
		for _, g := range groups {
			if g.Name == req.GroupName {
				groupID = g.ID
				found = true
				break
			}
		}
		if !found {
			return nil, 0, fmt.Errorf("%w: group %q not found", allocator.ErrInvalidInput, req.GroupName)
		}
	}

	total := req.Total.Round(2)
	expense := &ledger.Expense{
		Cost:        total,
		Description: req.Description,
		Details:     comment,
		GroupID:     groupID,
		GroupName:   req.GroupName,
	}
	for _, member := range sortedMembers(splits) {
		share := ledger.Share{
			UserID:    roster.NameToID[member],
			FirstName: member,
			OwedShare: splits[member],
		}
		if member == req.PaidBy {
			share.PaidShare = total
		}
		expense.Users = append(expense.Users, share)
	}
	return expense, groupID, nil
}

// mirror persists a snapshot to the local store. Failures are recorded
// and logged but never surfaced to the caller.
func (s *ExpenseService) mirror(ctx context.Context, expenseID string, groupID int64, req *ExpenseRequest, splits map[string]decimal.Decimal) {
	record := &models.SplitRecord{
		LedgerExpenseID: expenseID,
		GroupID:         formatGroupID(groupID),
		GroupName:       req.GroupName,
		Description:     req.Description,
		Total:           req.Total.Round(2),
		PaidBy:          req.PaidBy,
		Items:           req.Items,
		MemberSplits:    splits,
	}
	if err := s.store.SaveSplit(ctx, record); err != nil {
		metrics.MirrorWriteFailures.Inc()
		slog.Warn("mirror write failed", "expense_id", expenseID, "error", err)
	}
}

func noteOrDefault(note string) string {
	if note == "" {
		return defaultNote
	}
	return note
}

func divergenceWarning(req *ExpenseRequest) string {
	gap := allocator.Divergence(req.Items, req.Total)
	if gap.LessThanOrEqual(divergenceWarnThreshold) {
		return ""
	}
	return fmt.Sprintf("item prices sum to %s but total is %s (gap %s)",
		models.ItemsTotal(req.Items).StringFixed(2), req.Total.StringFixed(2), gap.StringFixed(2))
}

func toModelItems(parsed []extract.Item) []models.Item {
	items := make([]models.Item, len(parsed))
	for i, p := range parsed {
		items[i] = models.Item{Name: p.Name, Price: p.Price, Members: p.Members}
	}
	return items
}

func formatGroupID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func sortedMembers(splits map[string]decimal.Decimal) []string {
	members := make([]string, 0, len(splits))
	for member := range splits {
		members = append(members, member)
	}
	sort.Strings(members)
	return members
}
