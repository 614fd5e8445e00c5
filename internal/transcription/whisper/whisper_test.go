package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/polygraf/audio-backend/internal/transcription"
)

func writeTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk.wav")
	if err := os.WriteFile(path, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	var gotModel, gotLang, gotFile string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		if _, fh, err := r.FormFile("audio"); err == nil {
			gotFile = fh.Filename
		}
		json.NewEncoder(w).Encode(map[string]any{
			"text": "hello there", "duration": 1.5, "language": "en",
		})
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL, Model: "base", Language: "en"})
	resp, err := p.Transcribe(context.Background(), transcription.Request{
		AudioPath: writeTestAudio(t),
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if resp.Text != "hello there" || resp.Language != "en" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotModel != "base" || gotLang != "en" || gotFile != "chunk.wav" {
		t.Fatalf("unexpected form values: model=%q lang=%q file=%q", gotModel, gotLang, gotFile)
	}
}

func TestTranscribe_SidecarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	if _, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: writeTestAudio(t)}); err == nil {
		t.Fatal("expected error on sidecar failure")
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	p := NewProvider(Config{URL: "http://localhost:1"})
	if _, err := p.Transcribe(context.Background(), transcription.Request{AudioPath: "/no/such/file.wav"}); err == nil {
		t.Fatal("expected error for missing audio file")
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL})
	if !p.IsAvailable(context.Background()) {
		t.Fatal("expected provider to be available")
	}

	down := NewProvider(Config{URL: "http://localhost:1"})
	if down.IsAvailable(context.Background()) {
		t.Fatal("expected unreachable sidecar to be unavailable")
	}
}
