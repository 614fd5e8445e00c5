package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// buildWAV assembles a minimal PCM WAV file with the given byte rate and
// data payload size.
func buildWAV(byteRate uint32, dataSize uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

func TestWAVDuration(t *testing.T) {
	// 16 kHz mono 16-bit: 32000 bytes/s, one second of samples
	data := buildWAV(32000, 32000)

	dur, err := wavDuration(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("wavDuration failed: %v", err)
	}
	if dur != 1000 {
		t.Fatalf("expected 1000ms, got %d", dur)
	}
}

func TestWAVDuration_ZeroData(t *testing.T) {
	dur, err := wavDuration(bytes.NewReader(buildWAV(32000, 0)))
	if err != nil {
		t.Fatalf("wavDuration failed: %v", err)
	}
	if dur != 0 {
		t.Fatalf("expected 0ms for empty data chunk, got %d", dur)
	}
}

func TestWAVDuration_SkipsUnknownChunks(t *testing.T) {
	var buf bytes.Buffer
	wav := buildWAV(32000, 16000)
	// insert a LIST chunk between header and fmt
	buf.Write(wav[:12])
	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(4))
	buf.WriteString("INFO")
	buf.Write(wav[12:])

	dur, err := wavDuration(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("wavDuration failed: %v", err)
	}
	if dur != 500 {
		t.Fatalf("expected 500ms, got %d", dur)
	}
}

func TestWAVDuration_NotWAV(t *testing.T) {
	if _, err := wavDuration(bytes.NewReader([]byte("OggS this is not a wav file"))); err == nil {
		t.Fatal("expected error for non-wav input")
	}
}

func TestWAVDurationFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.wav")
	if err := os.WriteFile(path, buildWAV(32000, 8000), 0o644); err != nil {
		t.Fatalf("write test wav: %v", err)
	}

	dur, err := WAVDuration(path)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}
	if dur != 250 {
		t.Fatalf("expected 250ms, got %d", dur)
	}
}
