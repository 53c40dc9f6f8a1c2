package model

import (
	"fmt"
	"strings"
)

// CameraType identifies which hardware adapter drives captures.
type CameraType string

const (
	CameraDummy  CameraType = "dummy"
	CameraWebcam CameraType = "webcam"
	CameraAstro  CameraType = "astro"
)

// ParseCameraType converts a configuration value into a CameraType.
func ParseCameraType(s string) (CameraType, error) {
	switch CameraType(strings.ToLower(strings.TrimSpace(s))) {
	case CameraDummy:
		return CameraDummy, nil
	case CameraWebcam:
		return CameraWebcam, nil
	case CameraAstro, "zwo_asi":
		return CameraAstro, nil
	}
	return "", fmt.Errorf("unknown camera type %q", s)
}

// CameraConfig is the set of parameters applied to the sensor for one capture.
// Focus and Aperture are nil when the stage must be left untouched.
type CameraConfig struct {
	CameraType CameraType `json:"camera_type"`
	Exposure   int        `json:"exposure"`
	Gain       int        `json:"gain"`
	Focus      *int       `json:"focus,omitempty"`
	Aperture   *int       `json:"aperture,omitempty"`
}

// WithFocus returns a copy of the config with focus set to v.
func (c CameraConfig) WithFocus(v int) CameraConfig {
	c.Focus = IntPtr(v)
	if c.Aperture != nil {
		c.Aperture = IntPtr(*c.Aperture)
	}
	return c
}

// String renders the config the way it is logged.
func (c CameraConfig) String() string {
	return fmt.Sprintf("camera=%s exposure=%d gain=%d focus=%s aperture=%s",
		c.CameraType, c.Exposure, c.Gain, FormatOptional(c.Focus), FormatOptional(c.Aperture))
}

// IntPtr returns a pointer to a copy of v.
func IntPtr(v int) *int {
	return &v
}

// FormatOptional prints an optional int, "-" when absent.
func FormatOptional(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
