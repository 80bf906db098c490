// Package extract coerces free-form AI model output into structured bill
// items. Vision and language models are asked for a strict JSON array but
// routinely wrap it in prose, drop brackets, or mangle the syntax; this
// package applies progressively looser parse strategies and degrades to an
// empty list rather than failing the request.
package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// maxNameLen caps item names for downstream cost tracking.
const maxNameLen = 10

// Item is a best-effort item candidate recovered from model output.
type Item struct {
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Members []string        `json:"members,omitempty"`
}

var (
	fenceRe  = regexp.MustCompile("```(?:json)?")
	objectRe = regexp.MustCompile(`\{[^{}]*\}`)
	fieldRe  = regexp.MustCompile(`(?i)"name"\s*:\s*"([^"]*)"[^{}\[\]]*?"price"\s*:\s*"?(-?[0-9]+(?:\.[0-9]+)?)"?`)
)

// Items parses model output into item candidates. It never returns an
// error: completely unusable output yields an empty list, logged at warn.
//
// Strategies, in order:
//  1. strip markdown code fences and parse as a clean JSON array
//  2. parse the first [ ... last ] span embedded in prose
//  3. collect top-level {...} objects missing the enclosing brackets
//  4. field-by-field regex extraction of name/price pairs
func Items(text string) []Item {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	if cleaned == "" {
		return nil
	}

	if items, ok := parseArray(cleaned); ok {
		return items
	}
	if items, ok := parseEmbeddedArray(cleaned); ok {
		return items
	}
	if items, ok := parseBareObjects(cleaned); ok {
		return items
	}
	if items, ok := parseFields(cleaned); ok {
		slog.Warn("item extraction fell back to field regex", "output_len", len(text))
		return items
	}

	slog.Warn("item extraction failed, returning empty list", "output_len", len(text))
	return nil
}

// ItemsWithMembers parses model output that additionally assigns members to
// each item, validating every member name against the allow-list. Matching
// is case-insensitive against the allowed names; unknown names are dropped.
func ItemsWithMembers(text string, allowed []string) []Item {
	canonical := make(map[string]string, len(allowed))
	for _, name := range allowed {
		canonical[strings.ToLower(name)] = name
	}

	items := Items(text)
	for i := range items {
		var members []string
		for _, m := range items[i].Members {
			if name, ok := canonical[strings.ToLower(strings.TrimSpace(m))]; ok {
				members = append(members, name)
			} else {
				slog.Warn("dropping member not in allow-list", "member", m, "item", items[i].Name)
			}
		}
		items[i].Members = members
	}
	return items
}

// rawItem tolerates the price arriving as a JSON number or a quoted string;
// decimal.Decimal unmarshals both.
type rawItem struct {
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Members []string        `json:"members"`
}

func parseArray(text string) ([]Item, bool) {
	var raws []rawItem
	if err := json.Unmarshal([]byte(text), &raws); err != nil {
		return nil, false
	}
	return convert(raws), true
}

func parseEmbeddedArray(text string) ([]Item, bool) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, false
	}
	return parseArray(text[start : end+1])
}

func parseBareObjects(text string) ([]Item, bool) {
	objects := objectRe.FindAllString(text, -1)
	if len(objects) == 0 {
		return nil, false
	}
	var raws []rawItem
	for _, obj := range objects {
		var raw rawItem
		if err := json.Unmarshal([]byte(obj), &raw); err != nil {
			continue
		}
		raws = append(raws, raw)
	}
	if len(raws) == 0 {
		return nil, false
	}
	return convert(raws), true
}

func parseFields(text string) ([]Item, bool) {
	matches := fieldRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, false
	}
	var items []Item
	for _, m := range matches {
		price, err := decimal.NewFromString(m[2])
		if err != nil || price.IsNegative() {
			continue
		}
		items = append(items, Item{Name: truncate(m[1]), Price: price})
	}
	if len(items) == 0 {
		return nil, false
	}
	return items, true
}

// convert filters out entries without a usable name or price.
func convert(raws []rawItem) []Item {
	var items []Item
	for _, raw := range raws {
		name := strings.TrimSpace(raw.Name)
		if name == "" || raw.Price.IsNegative() {
			continue
		}
		items = append(items, Item{
			Name:    truncate(name),
			Price:   raw.Price,
			Members: raw.Members,
		})
	}
	return items
}

func truncate(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameLen {
		return name
	}
	return string(runes[:maxNameLen])
}
