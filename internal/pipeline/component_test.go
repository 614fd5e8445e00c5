package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/polygraf/audio-backend/internal/component"
)

type blockingStage struct {
	started chan struct{}
}

func (s *blockingStage) Run(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	return nil
}

func TestStageComponent_Lifecycle(t *testing.T) {
	stage := &blockingStage{started: make(chan struct{})}
	c := NewStageComponent("test-stage", stage)

	if c.Name() != "test-stage" {
		t.Fatalf("unexpected name %q", c.Name())
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-stage.started:
	case <-time.After(time.Second):
		t.Fatal("stage loop never started")
	}

	if h := c.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Fatalf("expected healthy while running, got %+v", h)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if h := c.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Fatalf("expected unhealthy after stop, got %+v", h)
	}
}
