package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateCallsGenerateContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "key-1" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 || req.Contents[0].Parts[0].Text != "prompt text" {
			t.Errorf("contents = %+v", req.Contents)
		}
		if req.GenerationConfig.Temperature != 0.1 || req.GenerationConfig.MaxOutputTokens != 2048 {
			t.Errorf("generation config = %+v", req.GenerationConfig)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":" generated note "}]}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "key-1", "gemini-1.5-flash")
	text, err := client.Generate(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "generated note" {
		t.Fatalf("text = %q", text)
	}
	if client.Name() != "gemini" {
		t.Fatalf("name = %q", client.Name())
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	client := New("", "", "gemini-1.5-flash")
	_, err := client.Generate(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestGenerateEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "key-1", "m")
	if _, err := client.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGenerateSurfacesStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, "key-1", "m")
	_, err := client.Generate(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}
