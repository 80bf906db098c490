// Package vision calls the AI vision/transcription service that turns
// receipt photos and voice notes into candidate bill items. Responses are
// free-form model text; coercion into structured items lives in
// internal/extract, not here.
package vision

import (
	"context"
	"errors"
)

// ErrUpstream marks a failed call to the AI service. The documented
// degradation for malformed model *output* (empty item list) happens in
// internal/extract; transport failures are real errors and surface.
var ErrUpstream = errors.New("ai service request failed")

// Media is an uploaded image or audio clip to send to the model.
type Media struct {
	MIMEType string
	Data     []byte
}

// Analyzer is the narrow interface the service layer depends on. All
// methods return the model's raw text output.
type Analyzer interface {
	// AnalyzeBills extracts item name/price candidates from receipt images.
	AnalyzeBills(ctx context.Context, images []Media) (string, error)

	// Transcribe converts a voice recording into a transcript.
	Transcribe(ctx context.Context, audio Media) (string, error)

	// ItemsFromTranscript turns a transcript into item candidates with
	// member assignments constrained to the given names.
	ItemsFromTranscript(ctx context.Context, transcript string, members []string) (string, error)
}
