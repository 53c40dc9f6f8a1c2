package handler

import (
	"errors"
	"net/http"

	"camserver/internal/hardware"
	"camserver/internal/logger"
)

// InitStageHandler powers the focus/aperture stage.
func InitStageHandler(device *hardware.Device, logger *logger.Logger) http.HandlerFunc {
	return stageHandler("init", device.InitStage, device, logger)
}

// CloseStageHandler idles and releases the focus/aperture stage.
func CloseStageHandler(device *hardware.Device, logger *logger.Logger) http.HandlerFunc {
	return stageHandler("close", device.CloseStage, device, logger)
}

func stageHandler(action string, op func() error, device *hardware.Device, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(); err != nil {
			if errors.Is(err, hardware.ErrStageUnsupported) {
				writeError(w, http.StatusConflict, "stage unsupported", logger)
				return
			}
			logger.Error("Stage %s failed: %v", action, err)
			writeError(w, http.StatusInternalServerError, err.Error(), logger)
			return
		}

		logger.Info("Stage %s done", action)
		writeJSON(w, http.StatusOK, map[string]bool{"initialized": device.StageInitialized()}, logger)
	}
}
