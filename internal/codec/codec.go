// Package codec serializes structured item data into the free-text comment
// field of the external ledger, and parses it back out. The ledger has no
// native concept of itemized splits, so the comment doubles as the
// round-trippable side channel for them.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/splitpilot/internal/models"
)

// ErrCodec marks a comment whose payload is present but unparseable.
// Callers degrade to nil items rather than aborting the whole request.
var ErrCodec = errors.New("comment payload unparseable")

const (
	// markerPrefix starts the optional first line carrying the
	// ledger-assigned expense identifier, e.g. "EXPENSE_ID:12345".
	markerPrefix = "EXPENSE_ID:"

	// separator divides the human-readable note from the JSON item payload.
	// The literal is picked so it cannot plausibly occur in item names.
	separator = "---ITEMDATA---"
)

// Decoded is the structured content recovered from a comment.
type Decoded struct {
	// ExpenseID is the ledger identifier from the marker line,
	// empty when the marker is absent.
	ExpenseID string

	// Note is the human-readable text between marker and separator.
	Note string

	// Items is the recovered item list, nil when the comment carries no
	// payload (comments predating the convention, or edited by a human).
	Items []models.Item
}

// Encode builds the comment text: an optional EXPENSE_ID marker line first,
// then the note, then the separator, then the items as a JSON array.
//
// Any EXPENSE_ID line already present in the note is stripped before
// encoding, so re-encoding after an update replaces the marker instead of
// duplicating it.
func Encode(note string, items []models.Item, expenseID string) (string, error) {
	for _, item := range items {
		if strings.Contains(item.Name, separator) {
			return "", fmt.Errorf("%w: item name contains separator literal", ErrCodec)
		}
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodec, err)
	}

	var b strings.Builder
	if expenseID != "" {
		b.WriteString(markerPrefix)
		b.WriteString(expenseID)
		b.WriteString("\n")
	}
	if cleaned := stripMarker(note); cleaned != "" {
		b.WriteString(cleaned)
		b.WriteString("\n")
	}
	b.WriteString(separator)
	b.WriteString("\n")
	b.Write(payload)

	return b.String(), nil
}

// Decode parses a comment produced by Encode, tolerating comments that
// carry no marker, no payload, or both. A missing separator yields nil
// Items and no error; a present-but-malformed payload yields ErrCodec.
func Decode(comment string) (Decoded, error) {
	var d Decoded

	body := comment
	if strings.HasPrefix(body, markerPrefix) {
		line := body
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			line = body[:i]
			body = body[i+1:]
		} else {
			body = ""
		}
		d.ExpenseID = strings.TrimSpace(strings.TrimPrefix(line, markerPrefix))
	}

	i := strings.Index(body, separator)
	if i < 0 {
		d.Note = strings.TrimSpace(body)
		return d, nil
	}

	d.Note = strings.TrimSpace(body[:i])
	payload := strings.TrimSpace(body[i+len(separator):])
	if err := json.Unmarshal([]byte(payload), &d.Items); err != nil {
		return d, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return d, nil
}

// stripMarker removes any EXPENSE_ID lines from a note, so a note recovered
// from an annotated comment can be re-encoded without doubling the marker.
func stripMarker(note string) string {
	lines := strings.Split(note, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), markerPrefix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
