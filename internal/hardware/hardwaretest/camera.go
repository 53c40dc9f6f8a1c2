// Package hardwaretest provides an in-memory camera for tests that run
// without OpenCV.
package hardwaretest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"camserver/internal/hardware"
	"camserver/internal/model"
)

// Options configure a test Camera.
type Options struct {
	// Type defaults to dummy.
	Type  model.CameraType
	Delay time.Duration
	// FailOn lists 1-based capture call numbers that return an error.
	FailOn []int
	Stage  hardware.StageDriver
}

// Camera returns a small fixed payload per capture and records the
// configurations it was called with.
type Camera struct {
	typ    model.CameraType
	delay  time.Duration
	failOn map[int]bool
	stage  *hardware.StageHandle

	mu      sync.Mutex
	configs []model.CameraConfig
}

func NewCamera(opts Options) *Camera {
	c := &Camera{
		typ:    opts.Type,
		delay:  opts.Delay,
		failOn: make(map[int]bool, len(opts.FailOn)),
	}
	if c.typ == "" {
		c.typ = model.CameraDummy
	}
	for _, n := range opts.FailOn {
		c.failOn[n] = true
	}
	if opts.Stage != nil {
		c.stage = hardware.NewStageHandle(opts.Stage)
	}
	return c
}

func (c *Camera) Type() model.CameraType {
	return c.typ
}

func (c *Camera) Stage() *hardware.StageHandle {
	return c.stage
}

// Calls returns how many captures were attempted.
func (c *Camera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.configs)
}

// Configs returns the configurations of every capture attempt, in order.
func (c *Camera) Configs() []model.CameraConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.CameraConfig(nil), c.configs...)
}

func (c *Camera) Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error) {
	c.mu.Lock()
	c.configs = append(c.configs, cfg)
	call := len(c.configs)
	c.mu.Unlock()

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if c.failOn[call] {
		return nil, fmt.Errorf("simulated sensor fault on call %d", call)
	}
	return []byte(fmt.Sprintf("frame %d", call)), nil
}
