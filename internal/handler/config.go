package handler

import (
	"net/http"

	"camserver/internal/config"
	"camserver/internal/hardware"
	"camserver/internal/logger"
	"camserver/internal/service/capture"
)

// ConfigResponse describes the active camera and its capture defaults.
type ConfigResponse struct {
	Camera           string `json:"camera"`
	HasFocus         bool   `json:"has_focus"`
	HasAperture      bool   `json:"has_aperture"`
	Exposure         int    `json:"exposure"`
	Gain             int    `json:"gain"`
	Focus            *int   `json:"focus,omitempty"`
	Aperture         *int   `json:"aperture,omitempty"`
	MaxResults       int    `json:"max_results"`
	StageInitialized bool   `json:"stage_initialized"`
	PendingSweeps    int    `json:"pending_sweeps"`
}

// ConfigHandler returns the camera defaults used to prefill the capture form.
func ConfigHandler(cfg *config.Config, device *hardware.Device, sequencer *capture.Sequencer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := cfg.CameraConfig()
		writeJSON(w, http.StatusOK, ConfigResponse{
			Camera:           string(device.Type()),
			HasFocus:         base.Focus != nil,
			HasAperture:      base.Aperture != nil,
			Exposure:         base.Exposure,
			Gain:             base.Gain,
			Focus:            base.Focus,
			Aperture:         base.Aperture,
			MaxResults:       cfg.MaxResults,
			StageInitialized: device.StageInitialized(),
			PendingSweeps:    sequencer.Pending(),
		}, logger)
	}
}
