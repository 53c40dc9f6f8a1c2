package dto

import (
	"encoding/json"
	"time"

	"camserver/internal/model"
)

// ImageInfo joins a metadata record with the state of its files.
type ImageInfo struct {
	model.ImageMeta
	Timestamp     time.Time `json:"timestamp"`
	HasImage      bool      `json:"has_image"`
	HasThumbnail  bool      `json:"has_thumbnail"`
	ImageFile     string    `json:"image_filename,omitempty"`
	ThumbnailFile string    `json:"thumbnail_filename,omitempty"`
}

// MarshalJSON formats the timestamp the way the UI prints it and adds the job state.
func (i ImageInfo) MarshalJSON() ([]byte, error) {
	type Alias ImageInfo
	return json.Marshal(&struct {
		Alias
		Timestamp string         `json:"timestamp"`
		State     model.JobState `json:"state"`
	}{
		Alias:     (Alias)(i),
		Timestamp: i.Timestamp.Format("2006-01-02 15:04:05"),
		State:     i.State(),
	})
}
