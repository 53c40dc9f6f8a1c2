package dto

import "camserver/internal/model"

// SweepRequest is the decoded body of a capture request.
type SweepRequest struct {
	FocusMin  int  `json:"focus_min"`
	FocusMax  *int `json:"focus_max,omitempty"`
	FocusStep *int `json:"focus_step,omitempty"`
	Exposure  int  `json:"exposure"`
	Gain      int  `json:"gain"`
	Aperture  *int `json:"aperture,omitempty"`
}

// SweepAccepted acknowledges an accepted sweep.
type SweepAccepted struct {
	SweepID string   `json:"sweep_id"`
	JobIDs  []string `json:"job_ids"`
	Foci    []int    `json:"foci"`
}

// SweepStatus is a history entry joined with the current state of its jobs.
type SweepStatus struct {
	model.Sweep
	Pending   int `json:"pending"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// BestFocus and BestImage point at the sharpest scored capture.
	BestFocus *int        `json:"best_focus,omitempty"`
	BestImage string      `json:"best_image,omitempty"`
	Images    []ImageInfo `json:"images,omitempty"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
