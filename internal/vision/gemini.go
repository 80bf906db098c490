package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production generative-language API root.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the default vision/transcription model.
	DefaultModel = "gemini-1.5-flash"

	requestTimeout = 60 * time.Second
)

const billPrompt = `Extract only item names (max 10 chars) and prices from these bills.
Format as JSON array like: [{"name": "item", "price": 10.00}].
Include only items with clear prices.`

const transcribePrompt = `Transcribe this recording exactly. Return only the transcript text.`

const voiceItemsPrompt = `From the transcript below, extract the bill items people mention sharing.
Format as JSON array like: [{"name": "item", "price": 10.00, "members": ["Name"]}].
Only use member names from this list: %s.

Transcript:
%s`

// Gemini implements Analyzer against the generateContent REST endpoint.
// Construct one per request with the caller's API key.
type Gemini struct {
	baseURL string
	apiKey  string
	model   string
	hc      *http.Client
}

var _ Analyzer = (*Gemini)(nil)

// NewGemini creates a client for the given API root, key, and model.
// Empty baseURL or model select the production defaults.
func NewGemini(baseURL, apiKey, model string) *Gemini {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		hc:      &http.Client{Timeout: requestTimeout},
	}
}

// AnalyzeBills extracts item name/price candidates from receipt images.
func (g *Gemini) AnalyzeBills(ctx context.Context, images []Media) (string, error) {
	parts := []part{{Text: billPrompt}}
	for _, img := range images {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	return g.generate(ctx, parts)
}

// Transcribe converts a voice recording into a transcript.
func (g *Gemini) Transcribe(ctx context.Context, audio Media) (string, error) {
	parts := []part{
		{Text: transcribePrompt},
		{InlineData: &inlineData{
			MIMEType: audio.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(audio.Data),
		}},
	}
	return g.generate(ctx, parts)
}

// ItemsFromTranscript turns a transcript into item candidates constrained
// to the given member names.
func (g *Gemini) ItemsFromTranscript(ctx context.Context, transcript string, members []string) (string, error) {
	prompt := fmt.Sprintf(voiceItemsPrompt, strings.Join(members, ", "), transcript)
	return g.generate(ctx, []part{{Text: prompt}})
}

// wire types for generateContent

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) generate(ctx context.Context, parts []part) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrUpstream, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: model endpoint returned %d", ErrUpstream, resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response from model", ErrUpstream)
	}

	var out strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	return out.String(), nil
}
