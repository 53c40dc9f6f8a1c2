package model

import "errors"

// ErrAlreadyTerminal is returned when a finished record is completed or failed again.
var ErrAlreadyTerminal = errors.New("image meta already in terminal state")

// JobState is the lifecycle state of one capture attempt.
type JobState string

const (
	StatePending JobState = "pending"
	StateSuccess JobState = "success"
	StateFailed  JobState = "failed"
)

// ImageMeta is the metadata record persisted next to every capture attempt.
type ImageMeta struct {
	ID         string     `json:"id"`
	Focus      *int       `json:"focus,omitempty"`
	Aperture   *int       `json:"aperture,omitempty"`
	Exposure   int        `json:"exposure"`
	Gain       int        `json:"gain"`
	CameraType CameraType `json:"camera_type,omitempty"`
	Waiting    bool       `json:"waiting"`
	Error      *string    `json:"error,omitempty"`
	Sharpness  *float64   `json:"sharpness,omitempty"`
	SweepID    string     `json:"sweep_id,omitempty"`
	Sequence   int        `json:"sequence"`
	PathHint   string     `json:"path_hint"`
}

// NewPendingMeta builds the waiting record for a job about to be queued.
func NewPendingMeta(id string, cfg CameraConfig, sweepID string, sequence int, pathHint string) *ImageMeta {
	meta := &ImageMeta{
		ID:         id,
		Exposure:   cfg.Exposure,
		Gain:       cfg.Gain,
		CameraType: cfg.CameraType,
		Waiting:    true,
		SweepID:    sweepID,
		Sequence:   sequence,
		PathHint:   pathHint,
	}
	if cfg.Focus != nil {
		meta.Focus = IntPtr(*cfg.Focus)
	}
	if cfg.Aperture != nil {
		meta.Aperture = IntPtr(*cfg.Aperture)
	}
	return meta
}

// State derives the job state from the waiting and error fields.
func (m *ImageMeta) State() JobState {
	switch {
	case m.Waiting:
		return StatePending
	case m.Error != nil:
		return StateFailed
	default:
		return StateSuccess
	}
}

// Complete moves a pending record to success.
func (m *ImageMeta) Complete() error {
	if !m.Waiting {
		return ErrAlreadyTerminal
	}
	m.Waiting = false
	m.Error = nil
	return nil
}

// Fail moves a pending record to failed with the given message.
func (m *ImageMeta) Fail(msg string) error {
	if !m.Waiting {
		return ErrAlreadyTerminal
	}
	if msg == "" {
		msg = "capture failed"
	}
	m.Waiting = false
	m.Error = &msg
	return nil
}
