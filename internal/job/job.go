// Package job defines the durable job record and its Redis-backed store.
// A job progresses queued -> processing_audio -> transcribing ->
// summarizing -> complete, or lands in failed on a stage-fatal error.
package job

import "encoding/json"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusProcessingAudio Status = "processing_audio"
	StatusTranscribing    Status = "transcribing"
	StatusSummarizing     Status = "summarizing"
	StatusComplete        Status = "complete"
	StatusFailed          Status = "failed"
)

// Job is a point-in-time snapshot of a job record.
type Job struct {
	ID string `json:"job_id"`

	Status Status `json:"status"`

	// TotalChunks is written once by the splitter before any chunk task
	// derived from it is enqueued. Zero means "not yet written".
	TotalChunks int `json:"total_chunks"`

	// ProcessedChunks is a monotonic counter advanced by transcription
	// workers. It never exceeds a non-zero TotalChunks in a correct run.
	ProcessedChunks int `json:"processed_chunks"`

	// Error holds the failure reason when Status is failed.
	Error string `json:"error,omitempty"`

	// Result holds the final summary JSON once the summarizer has run.
	Result json.RawMessage `json:"result,omitempty"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// ChunkResult is one transcribed chunk appended to the job's result list.
// Arrival order across workers is not timeline order; StartMs is the basis
// for any reordering.
type ChunkResult struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMs int64  `json:"timestamp_ms"`
}

// ActionItem is one entry in a structured summary's action item list.
type ActionItem struct {
	Owner   string `json:"owner"`
	Task    string `json:"task"`
	DueDate string `json:"due_date"`
}

// FinalSummary is the structured summary shape requested from the model.
// When the model output cannot be decoded the persisted result is a
// {"raw": "<text>"} wrapper instead.
type FinalSummary struct {
	Keypoints         []string          `json:"keypoints"`
	Decisions         []string          `json:"decisions"`
	ActionItems       []ActionItem      `json:"action_items"`
	PerSpeakerSummary map[string]string `json:"per_speaker_summary"`
}
