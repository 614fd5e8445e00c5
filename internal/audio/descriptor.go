// Package audio handles diarization descriptors, chunk boundary planning,
// and waveform slicing/normalization for the splitter stage.
package audio

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Segment is one entry of a diarization descriptor: who spoke, when, and
// for how long on the recording clock. Unrecognized extra fields in the
// descriptor are ignored.
type Segment struct {
	SpeakerName string `json:"speaker_name"`
	TimestampMs int64  `json:"timestamp_ms"`
	DurationMs  int64  `json:"duration_ms"`
}

// ParseDescriptor reads a diarization descriptor. The canonical shape is a
// JSON array of segments; an object wrapping the array under "segments",
// "utterances", "items", or "results" is also accepted.
func ParseDescriptor(r io.Reader) ([]Segment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audio: read descriptor: %w", err)
	}

	var segments []Segment
	if err := json.Unmarshal(data, &segments); err == nil {
		return segments, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("audio: descriptor is neither a segment array nor an object: %w", err)
	}
	for _, key := range []string{"segments", "utterances", "items", "results"} {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &segments); err != nil {
			return nil, fmt.Errorf("audio: decode descriptor %q list: %w", key, err)
		}
		return segments, nil
	}
	return nil, fmt.Errorf("audio: descriptor object has no segment list")
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// SafeName sanitizes a speaker label for use in artifact names: keeps
// alphanumerics, underscore, and hyphen, replacing runs of anything else
// with a single underscore.
func SafeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Unknown"
	}
	return unsafeNameChars.ReplaceAllString(name, "_")
}
