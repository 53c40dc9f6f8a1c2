package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"camserver/internal/dto"
	"camserver/internal/logger"
	"camserver/internal/service/capture"
	"camserver/internal/service/storage"
)

const maxRequestBody = 1 << 20

// StartSweepHandler accepts a focus sweep as JSON or as a form and answers
// 202 as soon as every pending record has been written.
func StartSweepHandler(sequencer *capture.Sequencer, defaults dto.SweepRequest, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		req, err := decodeSweepRequest(r, defaults)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), logger)
			return
		}

		handle, err := sequencer.StartSweep(r.Context(), capture.SweepRequest{
			FocusMin:  req.FocusMin,
			FocusMax:  req.FocusMax,
			FocusStep: req.FocusStep,
			Exposure:  req.Exposure,
			Gain:      req.Gain,
			Aperture:  req.Aperture,
		})
		if err != nil {
			var persistErr *storage.PersistenceError
			switch {
			case errors.Is(err, capture.ErrQueueFull):
				writeError(w, http.StatusServiceUnavailable, err.Error(), logger)
			case errors.As(err, &persistErr):
				logger.Error("Error starting sweep: %v", err)
				writeError(w, http.StatusInternalServerError, "failed to write capture records", logger)
			default:
				logger.Error("Error starting sweep: %v", err)
				writeError(w, http.StatusInternalServerError, err.Error(), logger)
			}
			return
		}

		writeJSON(w, http.StatusAccepted, dto.SweepAccepted{
			SweepID: handle.ID,
			JobIDs:  handle.JobIDs,
			Foci:    handle.Foci,
		}, logger)
	}
}

// decodeSweepRequest reads the request body. focus_min is mandatory;
// exposure and gain fall back to the server defaults.
func decodeSweepRequest(r *http.Request, defaults dto.SweepRequest) (dto.SweepRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return decodeSweepJSON(r, defaults)
	}
	return decodeSweepForm(r, defaults)
}

func decodeSweepJSON(r *http.Request, defaults dto.SweepRequest) (dto.SweepRequest, error) {
	var body struct {
		FocusMin  *int `json:"focus_min"`
		FocusMax  *int `json:"focus_max"`
		FocusStep *int `json:"focus_step"`
		Exposure  *int `json:"exposure"`
		Gain      *int `json:"gain"`
		Aperture  *int `json:"aperture"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return dto.SweepRequest{}, fmt.Errorf("invalid JSON body: %v", err)
	}
	if body.FocusMin == nil {
		return dto.SweepRequest{}, errors.New("focus_min is required")
	}

	req := defaults
	req.FocusMin = *body.FocusMin
	req.FocusMax = body.FocusMax
	req.FocusStep = body.FocusStep
	if body.Exposure != nil {
		req.Exposure = *body.Exposure
	}
	if body.Gain != nil {
		req.Gain = *body.Gain
	}
	if body.Aperture != nil {
		req.Aperture = body.Aperture
	}
	return req, nil
}

func decodeSweepForm(r *http.Request, defaults dto.SweepRequest) (dto.SweepRequest, error) {
	if err := r.ParseForm(); err != nil {
		return dto.SweepRequest{}, fmt.Errorf("invalid form: %v", err)
	}

	var parseErr error
	field := func(name string) *int {
		v, err := parseOptionalInt(r.FormValue(name))
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("%s must be an integer", name)
		}
		return v
	}

	focusMin := field("focus_min")
	req := defaults
	req.FocusMax = field("focus_max")
	req.FocusStep = field("focus_step")
	if v := field("exposure"); v != nil {
		req.Exposure = *v
	}
	if v := field("gain"); v != nil {
		req.Gain = *v
	}
	if v := field("aperture"); v != nil {
		req.Aperture = v
	}
	if parseErr != nil {
		return dto.SweepRequest{}, parseErr
	}
	if focusMin == nil {
		return dto.SweepRequest{}, errors.New("focus_min is required")
	}
	req.FocusMin = *focusMin
	return req, nil
}
