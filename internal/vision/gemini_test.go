package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func modelServer(t *testing.T, reply string, capture *generateRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q, want test-key", r.URL.Query().Get("key"))
		}
		if capture != nil {
			json.NewDecoder(r.Body).Decode(capture)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": reply}}}},
			},
		})
	}))
}

func TestGemini_AnalyzeBills(t *testing.T) {
	var got generateRequest
	server := modelServer(t, `[{"name": "Pizza", "price": 20.00}]`, &got)
	defer server.Close()

	g := NewGemini(server.URL, "test-key", "")
	text, err := g.AnalyzeBills(context.Background(), []Media{
		{MIMEType: "image/jpeg", Data: []byte("fake-image-bytes")},
	})
	if err != nil {
		t.Fatalf("AnalyzeBills failed: %v", err)
	}
	if !strings.Contains(text, "Pizza") {
		t.Errorf("text = %q", text)
	}

	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
		t.Fatalf("request parts = %+v", got.Contents)
	}
	img := got.Contents[0].Parts[1].InlineData
	if img == nil || img.MIMEType != "image/jpeg" {
		t.Fatalf("inline data = %+v", img)
	}
	if decoded, _ := base64.StdEncoding.DecodeString(img.Data); string(decoded) != "fake-image-bytes" {
		t.Errorf("image payload round-trip failed: %q", decoded)
	}
}

func TestGemini_ItemsFromTranscript_CarriesMemberList(t *testing.T) {
	var got generateRequest
	server := modelServer(t, "[]", &got)
	defer server.Close()

	g := NewGemini(server.URL, "test-key", "")
	if _, err := g.ItemsFromTranscript(context.Background(), "alice had the pizza", []string{"Alice", "Bob"}); err != nil {
		t.Fatalf("ItemsFromTranscript failed: %v", err)
	}

	prompt := got.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "Alice, Bob") {
		t.Errorf("prompt missing member allow-list: %q", prompt)
	}
	if !strings.Contains(prompt, "alice had the pizza") {
		t.Errorf("prompt missing transcript: %q", prompt)
	}
}

func TestGemini_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	g := NewGemini(server.URL, "test-key", "")
	if _, err := g.AnalyzeBills(context.Background(), nil); !errors.Is(err, ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}
