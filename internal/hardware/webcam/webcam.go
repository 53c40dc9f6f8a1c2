// Package webcam captures frames from a local video device through OpenCV.
package webcam

import (
	"context"
	"errors"
	"fmt"

	"camserver/internal/hardware"
	"camserver/internal/logger"
	"camserver/internal/model"

	"gocv.io/x/gocv"
)

const (
	// MaxFrameWidth and MaxFrameHeight are requested from the driver before reading.
	MaxFrameWidth  = 1920
	MaxFrameHeight = 1080
)

// Camera is a hardware.Camera reading from a V4L/DirectShow device.
type Camera struct {
	deviceID int
	logger   *logger.Logger
}

// New creates a webcam adapter for the given device index.
func New(deviceID int, logger *logger.Logger) *Camera {
	return &Camera{deviceID: deviceID, logger: logger}
}

func (c *Camera) Type() model.CameraType {
	return model.CameraWebcam
}

// Stage returns nil: webcams have no motorized stage.
func (c *Camera) Stage() *hardware.StageHandle {
	return nil
}

// Capture opens the device, reads one frame and releases the device again.
// Exposure and gain are not supported by the generic driver and are only logged.
func (c *Camera) Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error) {
	c.logger.Info("Capturing image with webcam %d (%s)", c.deviceID, cfg)

	cam, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to webcam: %w", err)
	}
	defer cam.Close()

	if !cam.IsOpened() {
		return nil, errors.New("failed to connect to webcam")
	}

	cam.Set(gocv.VideoCaptureFrameWidth, MaxFrameWidth)
	cam.Set(gocv.VideoCaptureFrameHeight, MaxFrameHeight)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := cam.Read(&frame); !ok || frame.Empty() {
		return nil, errors.New("failed to capture image with the webcam")
	}

	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}
