package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/transcription"
)

// stubTranscriber returns canned text per audio file, or an error when
// failAll is set.
type stubTranscriber struct {
	mu      sync.Mutex
	failAll bool
	text    string
	calls   int
}

func (s *stubTranscriber) Name() string { return "stub" }

func (s *stubTranscriber) IsAvailable(ctx context.Context) bool { return true }

func (s *stubTranscriber) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.failAll {
		return nil, fmt.Errorf("sidecar unavailable")
	}
	return &transcription.Response{Text: s.text}, nil
}

func newTranscriberFixture(t *testing.T, f *fixture, prov transcription.Provider) *Transcriber {
	t.Helper()
	return NewTranscriber(f.store, f.queue, f.artifacts, prov, 2, time.Second, t.TempDir(), f.log)
}

// seedChunks creates a job with the given total and uploads n chunk
// artifacts, returning their tasks.
func seedChunks(t *testing.T, f *fixture, jobID string, n int) []ChunkTask {
	t.Helper()
	ctx := context.Background()
	if err := f.store.Create(ctx, jobID); err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	if err := f.store.SetTotalChunks(ctx, jobID, n); err != nil {
		t.Fatalf("set total failed: %v", err)
	}

	tasks := make([]ChunkTask, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("jobs/%s/chunks/Speaker_%d.wav", jobID, i)
		f.upload(t, key, testWAV(16000))
		tasks[i] = ChunkTask{
			JobID:    jobID,
			ChunkKey: key,
			Speaker:  fmt.Sprintf("Speaker%d", i%2),
			StartMs:  int64(i * 1000),
		}
	}
	return tasks
}

func TestTranscriber_AppendsResultAndAdvances(t *testing.T) {
	f := newFixture(t)
	tr := newTranscriberFixture(t, f, &stubTranscriber{text: "hello world"})
	ctx := context.Background()

	tasks := seedChunks(t, f, "j1", 2)
	if err := tr.process(ctx, tasks[0]); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	j := f.getJob(t, "j1")
	if j.ProcessedChunks != 1 {
		t.Fatalf("expected 1 processed, got %d", j.ProcessedChunks)
	}
	if n := f.queueLen(t, redis.QueueSummary); n != 0 {
		t.Fatalf("summary must not be queued before the last chunk, got %d", n)
	}

	results, err := f.store.Results(ctx, "j1")
	if err != nil || len(results) != 1 {
		t.Fatalf("expected 1 result, got %d (err=%v)", len(results), err)
	}
	if results[0].Text != "hello world" || results[0].StartMs != 0 {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestTranscriber_LastChunkFiresBarrier(t *testing.T) {
	f := newFixture(t)
	tr := newTranscriberFixture(t, f, &stubTranscriber{text: "ok"})
	ctx := context.Background()

	// process out of order
	tasks := seedChunks(t, f, "j1", 3)
	for _, i := range []int{2, 0, 1} {
		if err := tr.process(ctx, tasks[i]); err != nil {
			t.Fatalf("process chunk %d failed: %v", i, err)
		}
	}

	j := f.getJob(t, "j1")
	if j.Status != job.StatusSummarizing {
		t.Fatalf("expected status %s, got %s", job.StatusSummarizing, j.Status)
	}
	if n := f.queueLen(t, redis.QueueSummary); n != 1 {
		t.Fatalf("expected exactly one summary task, got %d", n)
	}

	var st SummaryTask
	if err := f.queue.Pop(ctx, redis.QueueSummary, time.Second, &st); err != nil {
		t.Fatalf("pop summary failed: %v", err)
	}
	if st.JobID != "j1" {
		t.Fatalf("unexpected summary task: %+v", st)
	}
}

func TestTranscriber_ConcurrentBarrierFiresOnce(t *testing.T) {
	f := newFixture(t)
	tr := newTranscriberFixture(t, f, &stubTranscriber{text: "ok"})
	ctx := context.Background()

	const n = 12
	tasks := seedChunks(t, f, "j1", n)

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task ChunkTask) {
			defer wg.Done()
			if err := tr.process(ctx, task); err != nil {
				t.Errorf("process failed: %v", err)
			}
		}(task)
	}
	wg.Wait()

	if n := f.queueLen(t, redis.QueueSummary); n != 1 {
		t.Fatalf("expected exactly one summary task, got %d", n)
	}
	j := f.getJob(t, "j1")
	if j.ProcessedChunks != n {
		t.Fatalf("expected %d processed, got %d", n, j.ProcessedChunks)
	}
}

func TestTranscriber_ProviderFailureDegradesToEmptyText(t *testing.T) {
	f := newFixture(t)
	tr := newTranscriberFixture(t, f, &stubTranscriber{failAll: true})
	ctx := context.Background()

	tasks := seedChunks(t, f, "j1", 1)
	if err := tr.process(ctx, tasks[0]); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	results, err := f.store.Results(ctx, "j1")
	if err != nil || len(results) != 1 {
		t.Fatalf("expected 1 result, got %d (err=%v)", len(results), err)
	}
	if results[0].Text != "" {
		t.Fatalf("expected empty text for failed chunk, got %q", results[0].Text)
	}
	if results[0].Speaker != "Speaker0" {
		t.Fatalf("speaker attribution must survive failure, got %q", results[0].Speaker)
	}

	// the counter still advanced, so the barrier fired
	if n := f.queueLen(t, redis.QueueSummary); n != 1 {
		t.Fatalf("expected summary task despite failed chunk, got %d", n)
	}
}

func TestTranscriber_NoBarrierWhileTotalUnwritten(t *testing.T) {
	f := newFixture(t)
	tr := newTranscriberFixture(t, f, &stubTranscriber{text: "ok"})
	ctx := context.Background()

	if err := f.store.Create(ctx, "j1"); err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	key := "jobs/j1/chunks/Speaker_0.wav"
	f.upload(t, key, testWAV(16000))
	task := ChunkTask{JobID: "j1", ChunkKey: key, Speaker: "Speaker0"}

	if err := tr.process(ctx, task); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	// total_chunks == 0 still means "fan-out in flight"
	if n := f.queueLen(t, redis.QueueSummary); n != 0 {
		t.Fatalf("barrier must not fire before the total is written, got %d", n)
	}
	j := f.getJob(t, "j1")
	if j.ProcessedChunks != 1 {
		t.Fatalf("expected counter to advance, got %d", j.ProcessedChunks)
	}
}
