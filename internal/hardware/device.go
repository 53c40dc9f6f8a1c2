package hardware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"camserver/internal/model"
)

// Device is the exclusive owner of one physical camera. Every capture and
// stage call goes through its lock, so calls never overlap.
type Device struct {
	camera model.CameraType
	cam    Camera
	mu     sync.Mutex
}

// NewDevice wraps a camera adapter.
func NewDevice(cam Camera) *Device {
	return &Device{camera: cam.Type(), cam: cam}
}

// Type returns the camera type of the wrapped adapter.
func (d *Device) Type() model.CameraType {
	return d.camera
}

// HasStage reports whether the camera has a motorized stage.
func (d *Device) HasStage() bool {
	return d.cam.Stage() != nil
}

// Capture applies cfg and captures one frame while holding the device lock.
// Stage axes are only moved when the camera has a stage.
func (d *Device) Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(err)
	}

	if stage := d.cam.Stage(); stage != nil {
		if err := stage.Apply(cfg.Focus, cfg.Aperture); err != nil {
			return nil, &CaptureError{Camera: d.camera, Err: err}
		}
	}

	data, err := d.cam.Capture(ctx, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapContextErr(ctxErr)
		}
		var captureErr *CaptureError
		if errors.As(err, &captureErr) {
			return nil, err
		}
		return nil, &CaptureError{Camera: d.camera, Err: err}
	}
	if len(data) == 0 {
		return nil, &CaptureError{Camera: d.camera, Err: errors.New("empty frame")}
	}
	return data, nil
}

// InitStage initializes the stage, or returns ErrStageUnsupported.
func (d *Device) InitStage() error {
	stage := d.cam.Stage()
	if stage == nil {
		return ErrStageUnsupported
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return stage.Init()
}

// CloseStage idles the stage, or returns ErrStageUnsupported.
func (d *Device) CloseStage() error {
	stage := d.cam.Stage()
	if stage == nil {
		return ErrStageUnsupported
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return stage.Close()
}

// StageInitialized reports the stage state; false when there is no stage.
func (d *Device) StageInitialized() bool {
	stage := d.cam.Stage()
	return stage != nil && stage.Initialized()
}

func wrapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCaptureTimeout
	}
	return fmt.Errorf("capture cancelled: %w", err)
}
