package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/polygraf/audio-backend/internal/audio"
	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/storage"
)

// defaultPopTimeout bounds each blocking dequeue so the worker loop can
// observe context cancellation between items.
const defaultPopTimeout = 5 * time.Second

// Splitter consumes submitted jobs, computes chunk boundaries from the
// diarization descriptor, slices and normalizes the waveform, and fans
// out one ChunkTask per retained chunk.
type Splitter struct {
	store     *job.Store
	queue     *redis.Queue
	artifacts storage.Storage
	slicer    audio.Slicer
	workDir   string
	log       *logger.Logger
}

// NewSplitter creates a splitter stage worker.
func NewSplitter(store *job.Store, queue *redis.Queue, artifacts storage.Storage, slicer audio.Slicer, workDir string, log *logger.Logger) *Splitter {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Splitter{
		store:     store,
		queue:     queue,
		artifacts: artifacts,
		slicer:    slicer,
		workDir:   workDir,
		log:       log.WithComponent("splitter"),
	}
}

// Run consumes the splitting queue until ctx is cancelled.
func (s *Splitter) Run(ctx context.Context) error {
	for {
		var task SplitTask
		err := s.queue.Pop(ctx, redis.QueueSplitting, defaultPopTimeout, &task)
		if err != nil {
			if errors.Is(err, redis.ErrPopTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("dequeue failed", logger.ErrorFields("pop", err))
			continue
		}

		log := s.log.WithJob(task.JobID)
		log.Info("splitting job")

		if err := s.process(ctx, task); err != nil {
			// The task carries the job id, so failure handling never
			// depends on which step raised.
			log.Error("splitting failed", logger.ErrorFields("split", err))
			if ferr := s.store.Fail(ctx, task.JobID, err.Error()); ferr != nil {
				log.Error("marking job failed also failed", logger.ErrorFields("fail", ferr))
			}
		}
	}
}

// process runs the segmentation algorithm for a single job. Any returned
// error is stage-fatal for the job.
func (s *Splitter) process(ctx context.Context, task SplitTask) error {
	if err := s.store.UpdateStatus(ctx, task.JobID, job.StatusProcessingAudio, nil); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	if !audio.IsWAVName(task.MediaKey) {
		return fmt.Errorf("unsupported media format %q: only .wav files are supported", filepath.Ext(task.MediaKey))
	}

	segments, err := s.loadDescriptor(ctx, task.DescriptorKey)
	if err != nil {
		return err
	}

	mediaPath, cleanup, err := s.fetchMedia(ctx, task)
	if err != nil {
		return err
	}
	defer cleanup()

	plans := audio.Plan(segments)
	s.log.WithJob(task.JobID).Info("planned chunks", logger.Fields(
		"segments", len(segments), "planned", len(plans)))

	retained := s.sliceAll(ctx, task, mediaPath, plans)
	if len(retained) == 0 {
		return fmt.Errorf("no usable segments found in diarization descriptor")
	}

	// The total must be durably written before any chunk task becomes
	// visible to a consumer; the barrier reads it to decide completion.
	if err := s.store.SetTotalChunks(ctx, task.JobID, len(retained)); err != nil {
		return fmt.Errorf("set total chunks: %w", err)
	}
	if err := s.store.UpdateStatus(ctx, task.JobID, job.StatusTranscribing, nil); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	for _, chunk := range retained {
		if err := s.queue.Push(ctx, redis.QueueTranscription, chunk); err != nil {
			return fmt.Errorf("enqueue chunk %s: %w", chunk.ChunkKey, err)
		}
	}

	s.log.WithJob(task.JobID).Info("job split", logger.Fields("total_chunks", len(retained)))
	return nil
}

// sliceAll slices and uploads every planned chunk. Per-chunk failures are
// tolerated: the chunk is logged and skipped without aborting the job.
func (s *Splitter) sliceAll(ctx context.Context, task SplitTask, mediaPath string, plans []audio.ChunkPlan) []ChunkTask {
	log := s.log.WithJob(task.JobID)
	retained := make([]ChunkTask, 0, len(plans))

	for _, plan := range plans {
		chunkKey, err := s.sliceOne(ctx, task.JobID, mediaPath, plan)
		if err != nil {
			log.Warn("skipping segment", logger.Fields(
				"index", plan.Index,
				logger.FieldSpeaker, plan.Speaker,
				logger.FieldError, err.Error()))
			continue
		}
		retained = append(retained, ChunkTask{
			JobID:      task.JobID,
			ChunkKey:   chunkKey,
			Speaker:    plan.Speaker,
			StartMs:    plan.StartMs,
			DurationMs: plan.DurationMs,
		})
	}
	return retained
}

// sliceOne cuts a single chunk, verifies it is non-empty, and uploads it
// as an individually addressable artifact.
func (s *Splitter) sliceOne(ctx context.Context, jobID, mediaPath string, plan audio.ChunkPlan) (string, error) {
	dstPath := filepath.Join(s.workDir, fmt.Sprintf("%s_%s", jobID, plan.ArtifactName()))
	defer os.Remove(dstPath)

	if err := s.slicer.Slice(ctx, mediaPath, plan.RelStartMs, plan.DurationMs, dstPath); err != nil {
		return "", err
	}

	dur, err := audio.WAVDuration(dstPath)
	if err != nil {
		return "", fmt.Errorf("probe slice: %w", err)
	}
	if dur <= 0 {
		return "", fmt.Errorf("slice [%d:%d) normalized to zero length", plan.RelStartMs, plan.RelEndMs)
	}

	f, err := os.Open(dstPath)
	if err != nil {
		return "", fmt.Errorf("open slice: %w", err)
	}
	defer f.Close()

	chunkKey := fmt.Sprintf("jobs/%s/chunks/%s", jobID, plan.ArtifactName())
	if err := s.artifacts.Upload(ctx, chunkKey, f); err != nil {
		return "", fmt.Errorf("upload slice: %w", err)
	}
	return chunkKey, nil
}

func (s *Splitter) loadDescriptor(ctx context.Context, key string) ([]audio.Segment, error) {
	rc, err := s.artifacts.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch descriptor: %w", err)
	}
	defer rc.Close()

	segments, err := audio.ParseDescriptor(rc)
	if err != nil {
		return nil, err
	}
	return segments, nil
}

// fetchMedia downloads the media artifact to a local file for slicing.
func (s *Splitter) fetchMedia(ctx context.Context, task SplitTask) (string, func(), error) {
	rc, err := s.artifacts.Download(ctx, task.MediaKey)
	if err != nil {
		return "", nil, fmt.Errorf("fetch media: %w", err)
	}
	defer rc.Close()

	local, err := os.CreateTemp(s.workDir, "media-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("create media temp file: %w", err)
	}
	if _, err := local.ReadFrom(rc); err != nil {
		local.Close()
		os.Remove(local.Name())
		return "", nil, fmt.Errorf("download media: %w", err)
	}
	if err := local.Close(); err != nil {
		os.Remove(local.Name())
		return "", nil, fmt.Errorf("flush media temp file: %w", err)
	}

	path := local.Name()
	return path, func() { os.Remove(path) }, nil
}
