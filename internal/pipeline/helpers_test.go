package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/storage"
	"github.com/polygraf/audio-backend/internal/storage/local"
)

// fixture bundles the shared stage dependencies backed by miniredis and
// a temp-dir local storage.
type fixture struct {
	store     *job.Store
	queue     *redis.Queue
	artifacts storage.Storage
	log       *logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() { mini.Close() })

	cfg := redis.Config{Addr: mini.Addr()}
	cfg.ApplyDefaults()
	log := logger.NewDefault("pipeline-test")
	client, err := redis.New(cfg, log)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	artifacts, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	return &fixture{
		store:     job.NewStore(client, log),
		queue:     redis.NewQueue(client, ""),
		artifacts: artifacts,
		log:       log,
	}
}

func (f *fixture) upload(t *testing.T, key string, data []byte) {
	t.Helper()
	if err := f.artifacts.Upload(context.Background(), key, bytes.NewReader(data)); err != nil {
		t.Fatalf("upload %s failed: %v", key, err)
	}
}

func (f *fixture) queueLen(t *testing.T, name string) int64 {
	t.Helper()
	n, err := f.queue.Len(context.Background(), name)
	if err != nil {
		t.Fatalf("queue len %s failed: %v", name, err)
	}
	return n
}

func (f *fixture) getJob(t *testing.T, id string) *job.Job {
	t.Helper()
	j, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job %s failed: %v", id, err)
	}
	if j == nil {
		t.Fatalf("job %s not found", id)
	}
	return j
}

// testWAV builds a minimal 16 kHz mono PCM WAV with the given payload size.
func testWAV(dataSize uint32) []byte {
	const byteRate = 32000
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// stubSlicer writes a synthetic WAV instead of invoking ffmpeg. Windows
// listed in zeroAt produce an empty data chunk; those in failAt return
// an error.
type stubSlicer struct {
	zeroAt map[int64]bool
	failAt map[int64]bool
	calls  int
}

func (s *stubSlicer) Slice(ctx context.Context, srcPath string, startMs, durationMs int64, dstPath string) error {
	s.calls++
	if s.failAt[startMs] {
		return os.ErrInvalid
	}
	size := uint32(16000)
	if s.zeroAt[startMs] {
		size = 0
	}
	return os.WriteFile(dstPath, testWAV(size), 0o644)
}
