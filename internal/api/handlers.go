// Package api exposes the bill-splitting service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitpilot/internal/allocator"
	"github.com/mmynk/splitpilot/internal/codec"
	"github.com/mmynk/splitpilot/internal/expr"
	"github.com/mmynk/splitpilot/internal/ledger"
	"github.com/mmynk/splitpilot/internal/models"
	"github.com/mmynk/splitpilot/internal/service"
	"github.com/mmynk/splitpilot/internal/storage"
	"github.com/mmynk/splitpilot/internal/vision"
)

// maxUploadSize caps a single uploaded receipt image or voice recording.
const maxUploadSize = 10 << 20

// Handler holds the service and the optional fallback API keys used when
// a request carries none of its own.
type Handler struct {
	svc              *service.ExpenseService
	defaultLedgerKey string
	defaultVisionKey string
}

// NewHandler creates the HTTP handler set.
func NewHandler(svc *service.ExpenseService, defaultLedgerKey, defaultVisionKey string) *Handler {
	return &Handler{svc: svc, defaultLedgerKey: defaultLedgerKey, defaultVisionKey: defaultVisionKey}
}

// ledgerKey resolves the caller's ledger API key from header, query, or
// form, falling back to the server default.
func (h *Handler) ledgerKey(c *fiber.Ctx) (string, error) {
	key := firstNonEmpty(c.Get("X-Api-Key"), c.Query("api_key"), c.FormValue("api_key"), h.defaultLedgerKey)
	if key == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing ledger api key")
	}
	return key, nil
}

func (h *Handler) visionKey(c *fiber.Ctx) (string, error) {
	key := firstNonEmpty(c.Get("X-Gemini-Key"), c.Query("gemini_key"), c.FormValue("gemini_key"), h.defaultVisionKey)
	if key == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing ai api key")
	}
	return key, nil
}

// Initialize validates the ledger key and returns the key owner's name.
func (h *Handler) Initialize(c *fiber.Ctx) error {
	key, err := h.ledgerKey(c)
	if err != nil {
		return err
	}
	name, err := h.svc.Initialize(c.Context(), key)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"current_user": name})
}

// Members returns the current user and friends as a name-to-id mapping.
func (h *Handler) Members(c *fiber.Ctx) error {
	key, err := h.ledgerKey(c)
	if err != nil {
		return err
	}
	roster, err := h.svc.GetRoster(c.Context(), key)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"current_user": roster.CurrentUser,
		"members":      roster.Members,
		"member_ids":   roster.NameToID,
	})
}

// Groups returns the ledger groups as a name-to-id mapping.
func (h *Handler) Groups(c *fiber.Ctx) error {
	key, err := h.ledgerKey(c)
	if err != nil {
		return err
	}
	groups, err := h.svc.GetGroups(c.Context(), key)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"groups": groups})
}

// AnalyzeBills accepts multipart receipt images under the "bills" field
// and returns extracted item candidates.
func (h *Handler) AnalyzeBills(c *fiber.Ctx) error {
	key, err := h.visionKey(c)
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected multipart form")
	}
	files := form.File["bills"]
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no bill images uploaded")
	}

	images := make([]vision.Media, 0, len(files))
	for _, file := range files {
		media, err := readUpload(file)
		if err != nil {
			return err
		}
		images = append(images, media)
	}

	items, err := h.svc.AnalyzeBills(c.Context(), key, images)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"items": itemsPayload(items)})
}

// ProcessVoice accepts a recording under the "audio" field plus a
// comma-separated "members" allow-list, and returns the transcript with
// extracted item candidates.
func (h *Handler) ProcessVoice(c *fiber.Ctx) error {
	key, err := h.visionKey(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("audio")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "no audio uploaded")
	}
	audio, err := readUpload(file)
	if err != nil {
		return err
	}
	allowed := splitMembers(c.FormValue("members"))

	transcript, items, err := h.svc.ProcessVoice(c.Context(), key, audio, allowed)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"transcript": transcript,
		"items":      itemsPayload(items),
	})
}

// expenseRequest is the JSON body for create and update. Item prices may
// be numbers or arithmetic expressions like "12.50 + 3".
type expenseRequest struct {
	Items       []itemRequest   `json:"items"`
	Total       json.RawMessage `json:"total"`
	PaidBy      string          `json:"paid_by"`
	GroupName   string          `json:"group_name"`
	Description string          `json:"description"`
	Note        string          `json:"note"`
	ExpenseID   string          `json:"expense_id"`
}

type itemRequest struct {
	Name    string          `json:"name"`
	Price   json.RawMessage `json:"price"`
	Members []string        `json:"members"`
}

// itemResponse mirrors the item shape sent back to clients.
type itemResponse struct {
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Members []string        `json:"members"`
}

func (h *Handler) parseExpenseRequest(c *fiber.Ctx) (*service.ExpenseRequest, string, error) {
	var req expenseRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	total, err := parseAmount(req.Total)
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "total: "+err.Error())
	}
	items := make([]models.Item, len(req.Items))
	for i, item := range req.Items {
		price, err := parseAmount(item.Price)
		if err != nil {
			return nil, "", fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("item %q price: %v", item.Name, err))
		}
		items[i] = models.Item{Name: item.Name, Price: price, Members: item.Members}
	}

	return &service.ExpenseRequest{
		Items:       items,
		Total:       total,
		PaidBy:      req.PaidBy,
		GroupName:   req.GroupName,
		Description: req.Description,
		Note:        req.Note,
	}, req.ExpenseID, nil
}

// CreateExpense creates an itemized expense in the ledger.
func (h *Handler) CreateExpense(c *fiber.Ctx) error {
	key, err := h.ledgerKey(c)
	if err != nil {
		return err
	}
	req, _, err := h.parseExpenseRequest(c)
	if err != nil {
		return err
	}

	result, err := h.svc.CreateItemizedExpense(c.Context(), key, req)
	if errors.Is(err, service.ErrPartialSuccess) {
		// The expense exists; only its comment annotation is missing.
		return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
			"expense_id": result.ExpenseID,
			"splits":     result.Splits,
			"warning":    "expense created but comment annotation failed",
		})
	}
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(resultPayload(result))
}

// UpdateExpense replaces an existing itemized expense.
func (h *Handler) UpdateExpense(c *fiber.Ctx) error {
	key, err := h.ledgerKey(c)
	if err != nil {
		return err
	}
	req, expenseID, err := h.parseExpenseRequest(c)
	if err != nil {
		return err
	}
	if expenseID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "expense_id required")
	}

	result, err := h.svc.UpdateItemizedExpense(c.Context(), key, expenseID, req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(resultPayload(result))
}

// GetExpense loads an expense and its decoded item payload.
func (h *Handler) GetExpense(c *fiber.Ctx) error {
	key, err := h.ledgerKey(c)
	if err != nil {
		return err
	}
	expenseID := c.Query("expense_id")
	if expenseID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "expense_id required")
	}

	loaded, err := h.svc.LoadExpense(c.Context(), key, expenseID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"expense_id":  loaded.ExpenseID,
		"description": loaded.Description,
		"note":        loaded.Note,
		"total":       loaded.Total,
		"group_name":  loaded.GroupName,
		"paid_by":     loaded.PaidBy,
		"members":     loaded.Members,
		"items":       itemsPayload(loaded.Items),
	})
}

// ListSplits returns the mirror's records for a group.
func (h *Handler) ListSplits(c *fiber.Ctx) error {
	groupID := c.Query("group_id")
	if groupID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "group_id required")
	}
	records, err := h.svc.ListSplits(c.Context(), groupID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"splits": records})
}

// mapError translates service-layer failures into HTTP status codes.
func mapError(err error) error {
	switch {
	case errors.Is(err, allocator.ErrInvalidInput),
		errors.Is(err, codec.ErrCodec),
		errors.Is(err, expr.ErrSyntax):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrUpstream), errors.Is(err, vision.ErrUpstream):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// parseAmount accepts a JSON number or a string holding an arithmetic
// expression and returns its decimal value.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return decimal.Zero, errors.New("amount required")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		return expr.Eval(s)
	}
	return decimal.NewFromString(trimmed)
}

func readUpload(file *multipart.FileHeader) (vision.Media, error) {
	if file.Size > maxUploadSize {
		return vision.Media{}, fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s exceeds the %d MB upload limit", file.Filename, maxUploadSize>>20))
	}
	f, err := file.Open()
	if err != nil {
		return vision.Media{}, fiber.NewError(fiber.StatusBadRequest, "unreadable upload: "+file.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		return vision.Media{}, fiber.NewError(fiber.StatusBadRequest, "unreadable upload: "+file.Filename)
	}
	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return vision.Media{MIMEType: mimeType, Data: data}, nil
}

func itemsPayload(items []models.Item) []itemResponse {
	out := make([]itemResponse, len(items))
	for i, item := range items {
		out[i] = itemResponse{Name: item.Name, Price: item.Price, Members: item.Members}
	}
	return out
}

func resultPayload(result *service.ExpenseResult) fiber.Map {
	payload := fiber.Map{
		"expense_id": result.ExpenseID,
		"splits":     result.Splits,
	}
	if result.Warning != "" {
		payload["warning"] = result.Warning
	}
	return payload
}

func splitMembers(raw string) []string {
	var members []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			members = append(members, name)
		}
	}
	return members
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
