package audio

import "fmt"

// ChunkPlan is one planned slice of the recording, aligned to the media
// file's own clock.
type ChunkPlan struct {
	// Index is the segment's ordinal position in the descriptor. It is
	// part of the artifact name so same-named speakers never collide.
	Index int

	// Speaker is the original (unsanitized) speaker label.
	Speaker string

	// StartMs is the segment start on the diarization clock.
	StartMs int64

	// DurationMs is the segment length.
	DurationMs int64

	// RelStartMs/RelEndMs is the slice window relative to the start of
	// the media file, after anchor alignment.
	RelStartMs int64
	RelEndMs   int64
}

// ArtifactName returns the chunk's collision-free artifact file name.
func (p ChunkPlan) ArtifactName() string {
	return fmt.Sprintf("%s_%d.wav", SafeName(p.Speaker), p.Index)
}

// Anchor returns the earliest start offset over all segments. The
// diarization clock need not start at zero relative to the media file, so
// the earliest timestamp, not the first entry, is the alignment anchor.
func Anchor(segments []Segment) int64 {
	var anchor int64
	first := true
	for _, s := range segments {
		if first || s.TimestampMs < anchor {
			anchor = s.TimestampMs
			first = false
		}
	}
	return anchor
}

// Plan computes chunk boundaries from a diarization descriptor. Segments
// with non-positive duration are dropped; negative anchor-relative starts
// are clamped to zero. Plan is pure: it does not touch the waveform.
func Plan(segments []Segment) []ChunkPlan {
	if len(segments) == 0 {
		return nil
	}

	anchor := Anchor(segments)

	plans := make([]ChunkPlan, 0, len(segments))
	for idx, seg := range segments {
		if seg.DurationMs <= 0 {
			continue
		}
		relStart := seg.TimestampMs - anchor
		if relStart < 0 {
			relStart = 0
		}
		plans = append(plans, ChunkPlan{
			Index:      idx,
			Speaker:    seg.SpeakerName,
			StartMs:    seg.TimestampMs,
			DurationMs: seg.DurationMs,
			RelStartMs: relStart,
			RelEndMs:   relStart + seg.DurationMs,
		})
	}
	return plans
}
