// Package capture turns focus sweep requests into hardware-serialized capture
// jobs and drives each job from a pending record to its terminal state.
package capture

import (
	"context"

	"camserver/internal/model"
	"camserver/internal/service/events"
)

// Job is one capture attempt of a sweep. Config is a snapshot taken at
// submission; Meta is the record the worker moves to a terminal state.
type Job struct {
	Sequence int
	Config   model.CameraConfig
	Meta     *model.ImageMeta
}

// Capturer is the serialized hardware entry point, satisfied by *hardware.Device.
type Capturer interface {
	Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error)
}

// Store is the part of the image folder used by the sequencer and the worker.
type Store interface {
	Exists(id string) bool
	WriteMeta(meta *model.ImageMeta) error
	Save(id string, data []byte) error
	SaveThumbnail(id string, data []byte) error
	RemoveImage(id string) error
}

// Thumbnailer scales an encoded image so it fits in maxWidth x maxHeight.
type Thumbnailer interface {
	Thumbnail(data []byte, maxWidth, maxHeight int) ([]byte, error)
}

// Scorer rates how well focused an encoded image is; higher is sharper.
type Scorer interface {
	Score(data []byte) (float64, error)
}

// Publisher receives job outcomes; it must not block.
type Publisher interface {
	Publish(ev events.JobEvent)
}
