package handler

import (
	"net/http"

	"camserver/internal/dto"
	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/repository"
	"camserver/internal/service/storage"
)

const defaultSweepLimit = 50

// ListSweepsHandler returns the sweep history joined with the current job states.
func ListSweepsHandler(sweeps repository.SweepRepository, store *storage.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), defaultSweepLimit)

		list, err := sweeps.List(limit)
		if err != nil {
			logger.Error("Error listing sweeps: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list sweeps", logger)
			return
		}

		statuses := make([]dto.SweepStatus, 0, len(list))
		for _, sweep := range list {
			statuses = append(statuses, sweepStatus(sweep, store, false))
		}
		writeJSON(w, http.StatusOK, statuses, logger)
	}
}

// GetSweepHandler returns one sweep with the records of its jobs.
func GetSweepHandler(sweeps repository.SweepRepository, store *storage.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		sweep, err := sweeps.GetByID(id)
		if err != nil {
			logger.Error("Error getting sweep %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to get sweep", logger)
			return
		}
		if sweep == nil {
			writeError(w, http.StatusNotFound, "sweep not found", logger)
			return
		}

		writeJSON(w, http.StatusOK, sweepStatus(*sweep, store, true), logger)
	}
}

// sweepStatus counts job states from the records still in the folder.
// Evicted records count as neither.
func sweepStatus(sweep model.Sweep, store *storage.Store, withImages bool) dto.SweepStatus {
	status := dto.SweepStatus{Sweep: sweep}
	var best *float64
	for _, job := range sweep.Jobs {
		meta, err := store.ReadMeta(job.ImageID)
		if err != nil {
			continue
		}
		switch meta.State() {
		case model.StatePending:
			status.Pending++
		case model.StateSuccess:
			status.Succeeded++
			if meta.Sharpness != nil && (best == nil || *meta.Sharpness > *best) {
				best = meta.Sharpness
				status.BestFocus = model.IntPtr(job.Focus)
				status.BestImage = job.ImageID
			}
		case model.StateFailed:
			status.Failed++
		}
		if withImages {
			status.Images = append(status.Images, store.Info(meta))
		}
	}
	return status
}
