package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/redis"
)

// Hash field names of the persisted job record.
const (
	fieldStatus    = "status"
	fieldTotal     = "total_chunks"
	fieldProcessed = "processed_chunks"
	fieldError     = "error"
	fieldResult    = "result"
	fieldCreatedAt = "created_at"
)

// Store persists job records and per-job transcript lists in Redis.
// The client is injected; callers own its lifecycle.
type Store struct {
	client *redis.Client
	log    *logger.Logger
}

// NewStore creates a job store backed by the given Redis client.
func NewStore(client *redis.Client, log *logger.Logger) *Store {
	return &Store{client: client, log: log.WithComponent("jobstore")}
}

func jobKey(id string) string {
	return "job:" + id
}

func transcriptsKey(id string) string {
	return "job:" + id + ":transcripts"
}

// Create initializes a job record in the queued state. Ids must be
// generated with negligible collision probability; an existing record
// with the same id is overwritten.
func (s *Store) Create(ctx context.Context, id string) error {
	err := s.client.HSet(ctx, jobKey(id), map[string]interface{}{
		fieldStatus:    string(StatusQueued),
		fieldTotal:     0,
		fieldProcessed: 0,
		fieldCreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("job create %s: %w", id, err)
	}
	return nil
}

// SetTotalChunks durably writes the job's chunk total. Callers must
// guarantee this happens before any dependent chunk task is enqueued.
func (s *Store) SetTotalChunks(ctx context.Context, id string, n int) error {
	err := s.client.HSet(ctx, jobKey(id), map[string]interface{}{fieldTotal: n})
	if err != nil {
		return fmt.Errorf("job set total %s: %w", id, err)
	}
	return nil
}

// IncrementProcessed atomically advances the processed counter and returns
// the new value. Redis serializes commands per key, so concurrent callers
// for the same job observe a strictly increasing sequence with no gaps or
// repeats; for a job with N chunks the returned values are exactly 1..N.
func (s *Store) IncrementProcessed(ctx context.Context, id string) (int, error) {
	n, err := s.client.HIncrBy(ctx, jobKey(id), fieldProcessed, 1)
	if err != nil {
		return 0, fmt.Errorf("job increment %s: %w", id, err)
	}
	return int(n), nil
}

// AppendResult appends a chunk result to the job's transcript list. The
// append itself is atomic; list order is arrival order, not timeline order.
func (s *Store) AppendResult(ctx context.Context, id string, rec ChunkResult) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("job append result %s: marshal: %w", id, err)
	}
	if err := s.client.RPush(ctx, transcriptsKey(id), body); err != nil {
		return fmt.Errorf("job append result %s: %w", id, err)
	}
	return nil
}

// Results returns all chunk results appended so far, in arrival order.
func (s *Store) Results(ctx context.Context, id string) ([]ChunkResult, error) {
	items, err := s.client.LRange(ctx, transcriptsKey(id), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("job results %s: %w", id, err)
	}
	out := make([]ChunkResult, 0, len(items))
	for _, item := range items {
		var rec ChunkResult
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.log.Warn("skipping unreadable transcript entry",
				logger.Fields(logger.FieldJobID, id, logger.FieldError, err.Error()))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpdateStatus merges the status and any extra fields into the job record.
// Only one stage mutates status-relevant fields at a time, so last-write-
// wins merge semantics are sufficient outside of failure races.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, extra map[string]interface{}) error {
	fields := map[string]interface{}{fieldStatus: string(status)}
	for k, v := range extra {
		fields[k] = v
	}
	if err := s.client.HSet(ctx, jobKey(id), fields); err != nil {
		return fmt.Errorf("job update status %s: %w", id, err)
	}
	return nil
}

// Fail marks the job as permanently failed with a descriptive error.
func (s *Store) Fail(ctx context.Context, id, reason string) error {
	return s.UpdateStatus(ctx, id, StatusFailed, map[string]interface{}{fieldError: reason})
}

// SaveResult persists the final summary JSON on the job record.
func (s *Store) SaveResult(ctx context.Context, id string, result json.RawMessage) error {
	err := s.client.HSet(ctx, jobKey(id), map[string]interface{}{fieldResult: string(result)})
	if err != nil {
		return fmt.Errorf("job save result %s: %w", id, err)
	}
	return nil
}

// Get returns a point-in-time snapshot of the job, or nil if it does
// not exist.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(id))
	if err != nil {
		return nil, fmt.Errorf("job get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	j := &Job{
		ID:     id,
		Status: Status(fields[fieldStatus]),
		Error:  fields[fieldError],
	}
	if v := fields[fieldTotal]; v != "" {
		j.TotalChunks, _ = strconv.Atoi(v)
	}
	if v := fields[fieldProcessed]; v != "" {
		j.ProcessedChunks, _ = strconv.Atoi(v)
	}
	if v := fields[fieldCreatedAt]; v != "" {
		j.CreatedAt, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := fields[fieldResult]; v != "" {
		if json.Valid([]byte(v)) {
			j.Result = json.RawMessage(v)
		}
	}
	return j, nil
}
