package handler

import (
	"errors"
	"net/http"

	"camserver/internal/logger"
	"camserver/internal/service/storage"
)

// ListImagesHandler returns the records of the image folder, most recent
// first. Records beyond max are deleted from disk.
func ListImagesHandler(store *storage.Store, maxResults int, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("max"), maxResults)

		images, err := store.List(limit)
		if err != nil {
			logger.Error("Error listing images: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list images", logger)
			return
		}

		writeJSON(w, http.StatusOK, images, logger)
	}
}

// ImageFileHandler serves the image or thumbnail of a capture.
func ImageFileHandler(store *storage.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		kind, err := storage.ParseKind(q.Get("kind"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), logger)
			return
		}

		path, err := store.Path(q.Get("id"), kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), logger)
			return
		}

		if !fileExists(path) {
			writeError(w, http.StatusNotFound, "file not found", logger)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}

// DeleteImageHandler deletes every file of one capture.
func DeleteImageHandler(store *storage.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")

		err := store.Delete(id)
		switch {
		case errors.Is(err, storage.ErrInvalidID):
			writeError(w, http.StatusBadRequest, err.Error(), logger)
			return
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error(), logger)
			return
		case errors.Is(err, storage.ErrPending):
			writeError(w, http.StatusConflict, err.Error(), logger)
			return
		case err != nil:
			logger.Error("Error deleting image %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to delete image", logger)
			return
		}

		logger.Info("Deleted capture %s", id)
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id}, logger)
	}
}

// ClearImagesHandler empties the image folder.
func ClearImagesHandler(store *storage.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := store.Clear()
		if err != nil {
			logger.Error("Error clearing images: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to clear images", logger)
			return
		}

		logger.Info("Cleared image folder: %d file(s) removed", removed)
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed}, logger)
	}
}
