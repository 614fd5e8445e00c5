package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/polygraf/audio-backend/internal/llm"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateContentRequest

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": `{"ok":true}`}}}},
			},
			"usageMetadata": map[string]int{
				"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15,
			},
		})
	})

	p := NewProvider(Config{BaseURL: srv.URL, APIKey: "key-123"})
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "be terse",
		Messages:     []llm.Message{{Role: "user", Content: "summarize"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != `{"ok":true}` {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
	if !strings.Contains(gotPath, "gemini-2.5-flash:generateContent") {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "key-123" {
		t.Fatalf("api key not sent, got %q", gotKey)
	}
	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "be terse" {
		t.Fatalf("system instruction not carried: %+v", gotReq.SystemInstruction)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Role != "user" {
		t.Fatalf("unexpected contents: %+v", gotReq.Contents)
	}
}

func TestComplete_ErrorStatus(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	p := NewProvider(Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", defaultModel},
		{"gemini-1.5-flash", defaultModel},
		{"gemini-2.5-pro", "gemini-2.5-pro"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.in); got != tt.want {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	if _, err := Factory()(map[string]any{}); err == nil {
		t.Fatal("expected error without api_key")
	}
	p, err := Factory()(map[string]any{"api_key": "k"})
	if err != nil {
		t.Fatalf("Factory failed: %v", err)
	}
	if p.Name() != ProviderName {
		t.Fatalf("unexpected provider name %q", p.Name())
	}
}
