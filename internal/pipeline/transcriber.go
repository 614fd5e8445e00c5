package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/storage"
	"github.com/polygraf/audio-backend/internal/transcription"
)

const (
	defaultTranscriberWorkers = 4
	defaultChunkTimeout       = 120 * time.Second
)

// Transcriber consumes chunk tasks concurrently, transcribes each chunk,
// and detects job completion through the processed-chunk counter. The
// worker that observes the counter reach the stored total is the unique
// last finisher and enqueues the single summary task.
type Transcriber struct {
	store        *job.Store
	queue        *redis.Queue
	artifacts    storage.Storage
	provider     transcription.Provider
	workers      int
	chunkTimeout time.Duration
	workDir      string
	log          *logger.Logger
}

// NewTranscriber creates a transcriber stage worker pool.
func NewTranscriber(store *job.Store, queue *redis.Queue, artifacts storage.Storage, prov transcription.Provider, workers int, chunkTimeout time.Duration, workDir string, log *logger.Logger) *Transcriber {
	if workers <= 0 {
		workers = defaultTranscriberWorkers
	}
	if chunkTimeout <= 0 {
		chunkTimeout = defaultChunkTimeout
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Transcriber{
		store:        store,
		queue:        queue,
		artifacts:    artifacts,
		provider:     prov,
		workers:      workers,
		chunkTimeout: chunkTimeout,
		workDir:      workDir,
		log:          log.WithComponent("transcriber"),
	}
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (t *Transcriber) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < t.workers; i++ {
		worker := i
		g.Go(func() error {
			t.loop(ctx, worker)
			return nil
		})
	}
	return g.Wait()
}

func (t *Transcriber) loop(ctx context.Context, worker int) {
	log := t.log.WithFields(logger.Fields("worker", worker))
	for {
		var task ChunkTask
		err := t.queue.Pop(ctx, redis.QueueTranscription, defaultPopTimeout, &task)
		if err != nil {
			if errors.Is(err, redis.ErrPopTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", logger.ErrorFields("pop", err))
			continue
		}

		if err := t.process(ctx, task); err != nil {
			log.WithJob(task.JobID).Error("chunk processing failed",
				logger.ErrorFields("transcribe", err))
		}
	}
}

// process transcribes one chunk and advances the completion barrier. A
// provider failure degrades to an empty transcript rather than stalling
// the job: the counter must advance exactly once per dequeued chunk.
func (t *Transcriber) process(ctx context.Context, task ChunkTask) error {
	log := t.log.WithJob(task.JobID)

	text, err := t.transcribeChunk(ctx, task)
	if err != nil {
		log.Warn("chunk transcription failed, recording empty text", logger.Fields(
			logger.FieldChunk, task.ChunkKey,
			logger.FieldSpeaker, task.Speaker,
			logger.FieldError, err.Error()))
		text = ""
	}

	if err := t.store.AppendResult(ctx, task.JobID, job.ChunkResult{
		Speaker: task.Speaker,
		Text:    text,
		StartMs: task.StartMs,
	}); err != nil {
		return err
	}

	processed, err := t.store.IncrementProcessed(ctx, task.JobID)
	if err != nil {
		return err
	}

	snapshot, err := t.store.Get(ctx, task.JobID)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return fmt.Errorf("job %s vanished after increment", task.JobID)
	}

	// total_chunks is zero until the splitter writes it; a zero total
	// means the fan-out is still in flight, never an empty job.
	total := snapshot.TotalChunks
	log.Debug("chunk transcribed", logger.Fields(
		logger.FieldChunk, task.ChunkKey, "processed", processed, "total", total))

	if total != 0 && processed >= total {
		if err := t.store.UpdateStatus(ctx, task.JobID, job.StatusSummarizing, nil); err != nil {
			return err
		}
		if err := t.queue.Push(ctx, redis.QueueSummary, SummaryTask{JobID: task.JobID}); err != nil {
			return fmt.Errorf("enqueue summary: %w", err)
		}
		log.Info("all chunks transcribed, summary queued", logger.Fields("total", total))
	}
	return nil
}

// transcribeChunk downloads the chunk artifact and runs the provider
// against it under the per-chunk timeout.
func (t *Transcriber) transcribeChunk(ctx context.Context, task ChunkTask) (string, error) {
	localPath, cleanup, err := t.fetchChunk(ctx, task.ChunkKey)
	if err != nil {
		return "", err
	}
	defer cleanup()

	callCtx, cancel := context.WithTimeout(ctx, t.chunkTimeout)
	defer cancel()

	resp, err := t.provider.Transcribe(callCtx, transcription.Request{AudioPath: localPath})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (t *Transcriber) fetchChunk(ctx context.Context, key string) (string, func(), error) {
	rc, err := t.artifacts.Download(ctx, key)
	if err != nil {
		return "", nil, fmt.Errorf("fetch chunk %s: %w", key, err)
	}
	defer rc.Close()

	local, err := os.CreateTemp(t.workDir, "chunk-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create chunk temp file: %w", err)
	}
	if _, err := local.ReadFrom(rc); err != nil {
		local.Close()
		os.Remove(local.Name())
		return "", nil, fmt.Errorf("download chunk %s: %w", key, err)
	}
	if err := local.Close(); err != nil {
		os.Remove(local.Name())
		return "", nil, fmt.Errorf("flush chunk temp file: %w", err)
	}

	path := local.Name()
	return path, func() { os.Remove(path) }, nil
}
