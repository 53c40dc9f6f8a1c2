package model

import "time"

// Sweep is the history entry stored for every accepted sweep request.
type Sweep struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	CameraType CameraType `json:"camera_type"`
	Exposure   int        `json:"exposure"`
	Gain       int        `json:"gain"`
	Aperture   *int       `json:"aperture,omitempty"`
	FocusMin   int        `json:"focus_min"`
	FocusMax   *int       `json:"focus_max,omitempty"`
	FocusStep  *int       `json:"focus_step,omitempty"`
	Jobs       []SweepJob `json:"jobs"`
}

// SweepJob links a sweep to one of its capture records.
type SweepJob struct {
	ImageID  string `json:"image_id"`
	Sequence int    `json:"sequence"`
	Focus    int    `json:"focus"`
}
