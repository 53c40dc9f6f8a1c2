// Package hardware defines the capabilities the capture core needs from a
// camera and its optional focus/aperture stage.
package hardware

import (
	"context"
	"errors"
	"fmt"

	"camserver/internal/model"
)

var (
	// ErrStageUnsupported is returned for stage operations on a camera without one.
	ErrStageUnsupported = errors.New("stage unsupported by camera")
	// ErrCaptureTimeout marks a capture that did not finish within its deadline.
	ErrCaptureTimeout = errors.New("capture timed out")
)

// Camera captures one encoded frame for a given configuration.
type Camera interface {
	Type() model.CameraType
	Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error)
	// Stage returns the motorized stage, or nil when the camera has none.
	Stage() *StageHandle
}

// CaptureError wraps a sensor or driver fault.
type CaptureError struct {
	Camera model.CameraType
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s capture failed: %v", e.Camera, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
