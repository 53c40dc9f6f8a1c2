// Package dummy provides a camera that produces random noise frames.
package dummy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"camserver/internal/hardware"
	"camserver/internal/logger"
	"camserver/internal/model"

	"gocv.io/x/gocv"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 960
	DefaultDelay  = 1500 * time.Millisecond
)

// Options configure the dummy camera.
type Options struct {
	Width  int
	Height int
	Delay  time.Duration
	// FailOn lists 1-based capture call numbers that return an error.
	FailOn []int
	// Stage attaches a simulated stage when non-nil.
	Stage hardware.StageDriver
}

// Camera is a hardware.Camera generating noise images.
type Camera struct {
	width  int
	height int
	delay  time.Duration
	failOn map[int]bool
	stage  *hardware.StageHandle
	logger *logger.Logger

	mu    sync.Mutex
	calls int
}

// New creates a dummy camera. Zero sizes fall back to 1280x960; a zero
// delay disables sleeping.
func New(opts Options, logger *logger.Logger) *Camera {
	c := &Camera{
		width:  opts.Width,
		height: opts.Height,
		delay:  opts.Delay,
		failOn: make(map[int]bool, len(opts.FailOn)),
		logger: logger,
	}
	if c.width <= 0 {
		c.width = DefaultWidth
	}
	if c.height <= 0 {
		c.height = DefaultHeight
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
	return model.CameraDummy
}

func (c *Camera) Stage() *hardware.StageHandle {
	return c.stage
}

// Calls returns how many captures were attempted.
func (c *Camera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Camera) Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()

	c.logger.Info("Capturing image with dummy camera (%s)", cfg)

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

	return c.noiseJPEG()
}

func (c *Camera) noiseJPEG() ([]byte, error) {
	mat := gocv.NewMatWithSize(c.height, c.width, gocv.MatTypeCV8UC3)
	defer mat.Close()
	gocv.RandU(&mat, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("encode noise frame: %w", err)
	}
	defer buf.Close()
	frame := make([]byte, len(buf.GetBytes()))
	copy(frame, buf.GetBytes())
	return frame, nil
}
