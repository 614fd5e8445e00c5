package pipeline

import (
	"context"
	"sync"

	"github.com/polygraf/audio-backend/internal/component"
)

// Stage is a long-running queue consumer. Run blocks until ctx is
// cancelled.
type Stage interface {
	Run(ctx context.Context) error
}

// StageComponent adapts a Stage to the component lifecycle: Start launches
// the consumer loop in the background and Stop cancels it and waits.
type StageComponent struct {
	name   string
	stage  Stage
	cancel context.CancelFunc
	done   sync.WaitGroup

	mu      sync.Mutex
	running bool
	runErr  error
}

// NewStageComponent wraps a stage for registry-managed lifecycle.
func NewStageComponent(name string, stage Stage) *StageComponent {
	return &StageComponent{name: name, stage: stage}
}

// Name implements component.Component.
func (c *StageComponent) Name() string { return c.name }

// Start launches the stage loop. The passed context scopes startup only;
// the loop runs on its own context until Stop.
func (c *StageComponent) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	c.done.Add(1)
	go func() {
		defer c.done.Done()
		err := c.stage.Run(runCtx)

		c.mu.Lock()
		c.running = false
		c.runErr = err
		c.mu.Unlock()
	}()
	return nil
}

// Stop cancels the stage loop and waits for it to drain.
func (c *StageComponent) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	finished := make(chan struct{})
	go func() {
		c.done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health implements component.Component.
func (c *StageComponent) Health(ctx context.Context) component.Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := component.Health{Name: c.name, Status: component.StatusHealthy}
	if !c.running {
		h.Status = component.StatusUnhealthy
		h.Message = "stage not running"
		if c.runErr != nil {
			h.Message = c.runErr.Error()
		}
	}
	return h
}
