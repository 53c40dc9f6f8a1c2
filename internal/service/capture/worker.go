package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"camserver/internal/hardware"
	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/service/events"
)

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	CaptureTimeout  time.Duration
	ThumbnailWidth  int
	ThumbnailHeight int
	// Scorer is optional. A scoring error leaves the capture unscored.
	Scorer Scorer
}

// Worker executes jobs one at a time. It keeps no state between runs.
type Worker struct {
	device  Capturer
	store   Store
	thumbs  Thumbnailer
	events  Publisher
	logger  *logger.Logger
	options WorkerOptions
}

// NewWorker creates a Worker around one capture device. events may be nil
// when nobody listens for job updates.
func NewWorker(device Capturer, store Store, thumbs Thumbnailer, events Publisher, options WorkerOptions, logger *logger.Logger) *Worker {
	return &Worker{
		device:  device,
		store:   store,
		thumbs:  thumbs,
		events:  events,
		logger:  logger,
		options: options,
	}
}

// Run processes jobs in order. Every job ends with exactly one terminal
// record write and one published event, whatever happens to the others.
func (w *Worker) Run(ctx context.Context, jobs []*Job) {
	for _, job := range jobs {
		w.runJob(ctx, job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *Job) {
	id := job.Meta.ID
	w.logger.Debug("Capturing %s (sequence %d, %s)", id, job.Sequence, job.Config)

	data, err := w.capture(ctx, job.Config)
	if err != nil {
		w.logger.Error("Capture %s failed: %v", id, err)
		w.fail(job, w.captureMessage(err))
		return
	}

	if err := w.persist(job, data); err != nil {
		w.logger.Error("Saving capture %s failed: %v", id, err)
		if rmErr := w.store.RemoveImage(id); rmErr != nil {
			w.logger.Error("Removing incomplete capture %s failed: %v", id, rmErr)
		}
		w.fail(job, err.Error())
		return
	}

	w.logger.Info("Captured %s (%d bytes)", id, len(data))
	w.publish(job.Meta)
}

func (w *Worker) capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error) {
	if w.options.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.options.CaptureTimeout)
		defer cancel()
	}
	return w.device.Capture(ctx, cfg)
}

// persist writes image, thumbnail and the success record. The in-memory
// record only moves to success once the success record is on disk.
func (w *Worker) persist(job *Job, data []byte) error {
	id := job.Meta.ID
	if err := w.store.Save(id, data); err != nil {
		return err
	}

	thumb, err := w.thumbs.Thumbnail(data, w.options.ThumbnailWidth, w.options.ThumbnailHeight)
	if err != nil {
		return fmt.Errorf("thumbnail: %w", err)
	}
	if err := w.store.SaveThumbnail(id, thumb); err != nil {
		return err
	}

	done := *job.Meta
	if w.options.Scorer != nil {
		if score, err := w.options.Scorer.Score(data); err != nil {
			w.logger.Warning("Scoring %s failed: %v", id, err)
		} else {
			done.Sharpness = &score
		}
	}
	if err := done.Complete(); err != nil {
		return err
	}
	if err := w.store.WriteMeta(&done); err != nil {
		return err
	}
	*job.Meta = done
	return nil
}

func (w *Worker) fail(job *Job, msg string) {
	if err := job.Meta.Fail(msg); err != nil {
		w.logger.Error("Record %s: %v", job.Meta.ID, err)
		return
	}
	if err := w.store.WriteMeta(job.Meta); err != nil {
		w.logger.Error("Writing failed record %s: %v", job.Meta.ID, err)
	}
	w.publish(job.Meta)
}

func (w *Worker) publish(meta *model.ImageMeta) {
	if w.events == nil {
		return
	}
	w.events.Publish(events.NewJobEvent(meta))
}

func (w *Worker) captureMessage(err error) string {
	if errors.Is(err, hardware.ErrCaptureTimeout) {
		return fmt.Sprintf("capture timed out after %s", w.options.CaptureTimeout)
	}
	return err.Error()
}
