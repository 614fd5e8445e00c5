package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/llm"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/redis"
)

// summarySystemPrompt constrains the model to strict JSON so the result
// can be parsed by downstream consumers.
const summarySystemPrompt = `You are a meeting analyst. Return ONLY strict JSON with keys: ` +
	`keypoints (array of strings, 3-7), decisions (array of strings), ` +
	`action_items (array of {owner, task, due_date}), ` +
	`per_speaker_summary (object mapping speaker -> short summary). ` +
	`No prose outside the JSON. Use only facts present in the input.`

// Summarizer consumes summary tasks, assembles the per-speaker transcript
// payload in timeline order, and produces the final structured summary.
type Summarizer struct {
	store    *job.Store
	queue    *redis.Queue
	provider llm.Provider
	log      *logger.Logger
}

// NewSummarizer creates a summarizer stage worker.
func NewSummarizer(store *job.Store, queue *redis.Queue, prov llm.Provider, log *logger.Logger) *Summarizer {
	return &Summarizer{
		store:    store,
		queue:    queue,
		provider: prov,
		log:      log.WithComponent("summarizer"),
	}
}

// Run consumes the summary queue until ctx is cancelled.
func (s *Summarizer) Run(ctx context.Context) error {
	for {
		var task SummaryTask
		err := s.queue.Pop(ctx, redis.QueueSummary, defaultPopTimeout, &task)
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
		log.Info("summarizing job")

		if err := s.process(ctx, task); err != nil {
			log.Error("summarization failed", logger.ErrorFields("summarize", err))
			if ferr := s.store.Fail(ctx, task.JobID, err.Error()); ferr != nil {
				log.Error("marking job failed also failed", logger.ErrorFields("fail", ferr))
			}
		}
	}
}

// process produces and persists the final summary for a single job.
func (s *Summarizer) process(ctx context.Context, task SummaryTask) error {
	results, err := s.store.Results(ctx, task.JobID)
	if err != nil {
		return err
	}

	payload, err := buildTranscriptPayload(results)
	if err != nil {
		return err
	}

	content, err := llm.Complete(ctx, s.provider, summarySystemPrompt, payload)
	if err != nil {
		return fmt.Errorf("llm completion: %w", err)
	}

	// Model output is untrusted text; CoerceJSON always yields a valid
	// JSON document, wrapping unparseable output as {"raw": ...}.
	result := llm.CoerceJSON(content)

	if err := s.store.SaveResult(ctx, task.JobID, result); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, task.JobID, job.StatusComplete, nil); err != nil {
		return err
	}

	s.log.WithJob(task.JobID).Info("job complete")
	return nil
}

// buildTranscriptPayload orders chunk results in timeline order and groups
// the non-empty utterances per speaker into the prompt body.
func buildTranscriptPayload(results []job.ChunkResult) (string, error) {
	ordered := make([]job.ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartMs < ordered[j].StartMs
	})

	perSpeaker := make(map[string][]string)
	var speakers []string
	for _, rec := range ordered {
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			continue
		}
		if _, seen := perSpeaker[rec.Speaker]; !seen {
			speakers = append(speakers, rec.Speaker)
		}
		perSpeaker[rec.Speaker] = append(perSpeaker[rec.Speaker], text)
	}

	body, err := json.MarshalIndent(perSpeaker, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcripts: %w", err)
	}

	var b strings.Builder
	b.WriteString("per_person_transcripts (speakers: ")
	b.WriteString(strings.Join(speakers, ", "))
	b.WriteString("):\n")
	b.Write(body)
	return b.String(), nil
}
