// Package astro drives an astronomy CMOS camera with a motorized
// focus/aperture stage.
package astro

import (
	"context"
	"fmt"

	"camserver/internal/hardware"
	"camserver/internal/logger"
	"camserver/internal/model"
)

// Control names understood by the sensor SDK.
const (
	ControlExposure = "Exposure"
	ControlGain     = "Gain"
)

// Sensor is the binding to the camera SDK.
type Sensor interface {
	SetControl(name string, value int) error
	// Capture returns one RGB24 frame encoded as JPEG.
	Capture(ctx context.Context) ([]byte, error)
}

// Camera is a hardware.Camera for the astronomy sensor.
type Camera struct {
	sensor Sensor
	stage  *hardware.StageHandle
	logger *logger.Logger
}

// New wires a sensor and a stage driver. The stage handle is created once and
// lives as long as the camera.
func New(sensor Sensor, stage hardware.StageDriver, logger *logger.Logger) *Camera {
	return &Camera{
		sensor: sensor,
		stage:  hardware.NewStageHandle(stage),
		logger: logger,
	}
}

func (c *Camera) Type() model.CameraType {
	return model.CameraAstro
}

func (c *Camera) Stage() *hardware.StageHandle {
	return c.stage
}

// Capture sets exposure and gain, then reads one frame. Focus and aperture
// have already been applied through the stage by the device.
func (c *Camera) Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error) {
	c.logger.Info("Capturing image with astro camera (%s)", cfg)

	if err := c.sensor.SetControl(ControlExposure, cfg.Exposure); err != nil {
		return nil, fmt.Errorf("set exposure: %w", err)
	}
	if err := c.sensor.SetControl(ControlGain, cfg.Gain); err != nil {
		return nil, fmt.Errorf("set gain: %w", err)
	}
	return c.sensor.Capture(ctx)
}
