package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// IsWAVName reports whether the file name carries a .wav extension. Only
// WAV input media is supported; other containers are rejected before any
// slicing is attempted.
func IsWAVName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".wav")
}

// WAVDuration reads the RIFF header and fmt/data chunks of a WAV file and
// returns its duration in milliseconds. Used to discard slices that
// normalized to zero length.
func WAVDuration(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("audio: open wav: %w", err)
	}
	defer f.Close()
	return wavDuration(f)
}

func wavDuration(r io.Reader) (int64, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return 0, fmt.Errorf("audio: read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, fmt.Errorf("audio: not a wav file")
	}

	var byteRate uint32
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, fmt.Errorf("audio: wav has no data chunk")
			}
			return 0, fmt.Errorf("audio: read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return 0, fmt.Errorf("audio: fmt chunk too short")
			}
			var fmtData [16]byte
			if _, err := io.ReadFull(r, fmtData[:]); err != nil {
				return 0, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			byteRate = binary.LittleEndian.Uint32(fmtData[8:12])
			if rest := int64(chunkSize) - 16; rest > 0 {
				if _, err := io.CopyN(io.Discard, r, rest+int64(chunkSize%2)); err != nil {
					return 0, fmt.Errorf("audio: skip fmt extension: %w", err)
				}
			}
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("audio: data chunk before fmt chunk")
			}
			return int64(chunkSize) * 1000 / int64(byteRate), nil
		default:
			skip := int64(chunkSize) + int64(chunkSize%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return 0, fmt.Errorf("audio: skip %s chunk: %w", chunkID, err)
			}
		}
	}
}
