// Package pipeline implements the three stages of the fan-out/fan-in job
// pipeline: splitting, transcription, and summarization. Stages hand off
// work over named Redis queues and coordinate through the job store's
// atomic counter; the worker whose increment reaches the chunk total fires
// the summarization stage exactly once.
package pipeline

// SplitTask is the work item consumed by the splitter stage. MediaKey and
// DescriptorKey address artifacts in the artifact store.
type SplitTask struct {
	JobID         string `json:"job_id"`
	MediaKey      string `json:"media_path"`
	DescriptorKey string `json:"json_path"`
}

// ChunkTask is one speaker-attributed audio slice awaiting transcription.
// Produced once by the splitter; consumed at most once (there is no
// acknowledgment or redelivery).
type ChunkTask struct {
	JobID      string `json:"job_id"`
	ChunkKey   string `json:"chunk_path"`
	Speaker    string `json:"speaker"`
	StartMs    int64  `json:"start_ms"`
	DurationMs int64  `json:"duration_ms"`
}

// SummaryTask is a pure trigger for the summarization stage.
type SummaryTask struct {
	JobID string `json:"job_id"`
}
