package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Canonical output format for all chunks; the transcription model expects
// a single sample rate and channel count across chunks.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// Slicer extracts a window of a waveform into a normalized WAV file.
type Slicer interface {
	// Slice writes the [startMs, startMs+durationMs) window of srcPath to
	// dstPath as 16 kHz mono PCM WAV.
	Slice(ctx context.Context, srcPath string, startMs, durationMs int64, dstPath string) error
}

// FFmpegSlicer implements Slicer by shelling out to ffmpeg.
type FFmpegSlicer struct {
	// Binary is the ffmpeg executable; defaults to "ffmpeg" on PATH.
	Binary string
}

// NewFFmpegSlicer creates a slicer using the ffmpeg binary on PATH.
func NewFFmpegSlicer() *FFmpegSlicer {
	return &FFmpegSlicer{Binary: "ffmpeg"}
}

// Slice runs ffmpeg to cut and normalize one chunk.
func (s *FFmpegSlicer) Slice(ctx context.Context, srcPath string, startMs, durationMs int64, dstPath string) error {
	bin := s.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin,
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(startMs),
		"-t", formatSeconds(durationMs),
		"-i", srcPath,
		"-ac", strconv.Itoa(TargetChannels),
		"-ar", strconv.Itoa(TargetSampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dstPath,
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg slice [%d:%d): %w (%s)", startMs, startMs+durationMs, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// formatSeconds renders a millisecond offset as fractional seconds for
// ffmpeg arguments.
func formatSeconds(ms int64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}
