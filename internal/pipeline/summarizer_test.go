package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/llm"
	"github.com/polygraf/audio-backend/internal/redis"
)

// stubLLM returns canned content and records the prompts it receives.
type stubLLM struct {
	content    string
	err        error
	lastSystem string
	lastUser   string
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) IsAvailable(ctx context.Context) bool { return true }

func (s *stubLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.lastSystem = req.SystemPrompt
	if len(req.Messages) > 0 {
		s.lastUser = req.Messages[len(req.Messages)-1].Content
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func seedTranscripts(t *testing.T, f *fixture, jobID string) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.Create(ctx, jobID); err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	// arrival order deliberately differs from timeline order
	recs := []job.ChunkResult{
		{Speaker: "Alice", Text: "let's ship on Friday", StartMs: 2000},
		{Speaker: "Bob", Text: "I'll prepare the release notes", StartMs: 3000},
		{Speaker: "Bob", Text: "good morning everyone", StartMs: 0},
		{Speaker: "Alice", Text: "", StartMs: 1000},
	}
	for _, rec := range recs {
		if err := f.store.AppendResult(ctx, jobID, rec); err != nil {
			t.Fatalf("append result failed: %v", err)
		}
	}
}

func TestSummarizer_Complete(t *testing.T) {
	f := newFixture(t)
	prov := &stubLLM{content: `{"keypoints":["ship Friday"],"decisions":[],"action_items":[],"per_speaker_summary":{}}`}
	s := NewSummarizer(f.store, f.queue, prov, f.log)
	ctx := context.Background()

	seedTranscripts(t, f, "j1")
	if err := s.process(ctx, SummaryTask{JobID: "j1"}); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	j := f.getJob(t, "j1")
	if j.Status != job.StatusComplete {
		t.Fatalf("expected status %s, got %s", job.StatusComplete, j.Status)
	}
	var result map[string]json.RawMessage
	if err := json.Unmarshal(j.Result, &result); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if _, ok := result["keypoints"]; !ok {
		t.Fatalf("expected model JSON persisted, got %s", j.Result)
	}

	if !strings.Contains(prov.lastSystem, "strict JSON") {
		t.Fatalf("system prompt must demand strict JSON, got %q", prov.lastSystem)
	}
	if !strings.Contains(prov.lastUser, "per_person_transcripts") {
		t.Fatalf("user prompt must carry the transcripts payload, got %q", prov.lastUser)
	}
	// empty-text chunks are dropped from the payload
	if strings.Contains(prov.lastUser, `""`) {
		t.Fatalf("empty utterances must not reach the prompt: %q", prov.lastUser)
	}
}

func TestSummarizer_RawFallback(t *testing.T) {
	f := newFixture(t)
	prov := &stubLLM{content: "Sorry, I can only answer in prose."}
	s := NewSummarizer(f.store, f.queue, prov, f.log)
	ctx := context.Background()

	seedTranscripts(t, f, "j1")
	if err := s.process(ctx, SummaryTask{JobID: "j1"}); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	j := f.getJob(t, "j1")
	if j.Status != job.StatusComplete {
		t.Fatalf("expected status %s, got %s", job.StatusComplete, j.Status)
	}
	var wrapped map[string]string
	if err := json.Unmarshal(j.Result, &wrapped); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if wrapped["raw"] != "Sorry, I can only answer in prose." {
		t.Fatalf("expected raw wrapper, got %s", j.Result)
	}
}

func TestSummarizer_LLMFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	prov := &stubLLM{err: fmt.Errorf("quota exceeded")}
	s := NewSummarizer(f.store, f.queue, prov, f.log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seedTranscripts(t, f, "j1")
	if err := f.queue.Push(ctx, redis.QueueSummary, SummaryTask{JobID: "j1"}); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		j := f.getJob(t, "j1")
		if j.Status == job.StatusFailed {
			if !strings.Contains(j.Error, "quota exceeded") {
				t.Errorf("expected cause in error field, got %q", j.Error)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never failed, status=%s", j.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestBuildTranscriptPayload_TimelineOrder(t *testing.T) {
	payload, err := buildTranscriptPayload([]job.ChunkResult{
		{Speaker: "Bob", Text: "second", StartMs: 2000},
		{Speaker: "Bob", Text: "first", StartMs: 1000},
	})
	if err != nil {
		t.Fatalf("buildTranscriptPayload failed: %v", err)
	}

	first := strings.Index(payload, "first")
	second := strings.Index(payload, "second")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected timeline order in payload:\n%s", payload)
	}
}

func TestBuildTranscriptPayload_Empty(t *testing.T) {
	payload, err := buildTranscriptPayload(nil)
	if err != nil {
		t.Fatalf("buildTranscriptPayload failed: %v", err)
	}
	if !strings.Contains(payload, "per_person_transcripts") {
		t.Fatalf("expected payload header, got %q", payload)
	}
}
