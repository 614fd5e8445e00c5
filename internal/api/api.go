// Package api implements the HTTP handlers for job submission and status.
package api

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/polygraf/audio-backend/internal/errors"
	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/pipeline"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/server"
	"github.com/polygraf/audio-backend/internal/storage"
)

// Handler holds the API's dependencies.
type Handler struct {
	store     *job.Store
	queue     *redis.Queue
	artifacts storage.Storage
	health    func(*gin.Context)
	log       *logger.Logger
}

// NewHandler creates the API handler set.
func NewHandler(store *job.Store, queue *redis.Queue, artifacts storage.Storage, health func(*gin.Context), log *logger.Logger) *Handler {
	return &Handler{
		store:     store,
		queue:     queue,
		artifacts: artifacts,
		health:    health,
		log:       log.WithComponent("api"),
	}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(engine *gin.Engine) {
	engine.POST("/jobs", h.CreateJob)
	engine.GET("/jobs/:id", h.GetJob)
	if h.health != nil {
		engine.GET("/healthz", h.health)
	}
}

// createResponse is the 202 body for a submitted job.
type createResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateJob accepts a multipart upload with "media" (a .wav file) and
// "diarization" (the segment descriptor JSON), stores both as artifacts,
// creates the job record, and enqueues the splitting task.
func (h *Handler) CreateJob(c *gin.Context) {
	media, err := c.FormFile("media")
	if err != nil {
		server.RespondWithError(c, apperrors.MissingField("media"))
		return
	}
	descriptor, err := c.FormFile("diarization")
	if err != nil {
		server.RespondWithError(c, apperrors.MissingField("diarization"))
		return
	}
	if !strings.HasSuffix(strings.ToLower(media.Filename), ".wav") {
		server.RespondWithError(c, apperrors.InvalidInput("media", "only .wav files are supported"))
		return
	}

	jobID := uuid.New().String()
	mediaKey := fmt.Sprintf("jobs/%s/media.wav", jobID)
	descriptorKey := fmt.Sprintf("jobs/%s/diarization.json", jobID)

	if err := h.storeUpload(c, media, mediaKey); err != nil {
		server.RespondWithError(c, apperrors.Internal("failed to store media upload", err))
		return
	}
	if err := h.storeUpload(c, descriptor, descriptorKey); err != nil {
		server.RespondWithError(c, apperrors.Internal("failed to store diarization upload", err))
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Create(ctx, jobID); err != nil {
		server.RespondWithError(c, apperrors.Internal("failed to create job", err))
		return
	}
	task := pipeline.SplitTask{JobID: jobID, MediaKey: mediaKey, DescriptorKey: descriptorKey}
	if err := h.queue.Push(ctx, redis.QueueSplitting, task); err != nil {
		server.RespondWithError(c, apperrors.Internal("failed to enqueue job", err))
		return
	}

	h.log.WithJob(jobID).Info("job submitted", logger.Fields(
		"media", media.Filename, "descriptor", descriptor.Filename))
	server.RespondAccepted(c, createResponse{JobID: jobID, Status: string(job.StatusQueued)})
}

func (h *Handler) storeUpload(c *gin.Context, fh *multipart.FileHeader, key string) error {
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	return h.artifacts.Upload(c.Request.Context(), key, f)
}

// statusResponse is the job status body. Transcripts and result are only
// populated when available.
type statusResponse struct {
	JobID           string              `json:"job_id"`
	Status          string              `json:"status"`
	TotalChunks     int                 `json:"total_chunks"`
	ProcessedChunks int                 `json:"processed_chunks"`
	Error           string              `json:"error,omitempty"`
	Result          json.RawMessage     `json:"result,omitempty"`
	Transcripts     map[string][]string `json:"transcripts,omitempty"`
	UtteranceCounts map[string]int      `json:"utterance_counts,omitempty"`
}

// GetJob returns a point-in-time snapshot of the job. Once the job is
// complete the response also carries the parsed summary and the
// per-speaker utterances in timeline order.
func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	j, err := h.store.Get(ctx, id)
	if err != nil {
		server.RespondWithError(c, apperrors.Internal("failed to load job", err))
		return
	}
	if j == nil {
		server.RespondWithError(c, apperrors.NotFound("job", id))
		return
	}

	resp := statusResponse{
		JobID:           j.ID,
		Status:          string(j.Status),
		TotalChunks:     j.TotalChunks,
		ProcessedChunks: j.ProcessedChunks,
		Error:           j.Error,
		Result:          j.Result,
	}

	if j.Status == job.StatusComplete {
		results, err := h.store.Results(ctx, id)
		if err != nil {
			server.RespondWithError(c, apperrors.Internal("failed to load transcripts", err))
			return
		}
		resp.Transcripts, resp.UtteranceCounts = aggregateTranscripts(results)
	}

	server.RespondOK(c, resp)
}

// aggregateTranscripts groups non-empty chunk texts per speaker in
// timeline order and counts utterances per speaker.
func aggregateTranscripts(results []job.ChunkResult) (map[string][]string, map[string]int) {
	ordered := make([]job.ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartMs < ordered[j].StartMs
	})

	transcripts := make(map[string][]string)
	counts := make(map[string]int)
	for _, rec := range ordered {
		text := strings.TrimSpace(rec.Text)
		if text == "" {
			continue
		}
		transcripts[rec.Speaker] = append(transcripts[rec.Speaker], text)
		counts[rec.Speaker]++
	}
	return transcripts, counts
}
