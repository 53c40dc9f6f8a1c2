package capture

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/repository"
	"camserver/internal/service/storage"

	"github.com/oklog/ulid/v2"
)

// ErrQueueFull is returned when too many sweeps are waiting for the camera.
var ErrQueueFull = errors.New("capture queue full")

// SweepRequest describes a focus sweep. FocusMax and FocusStep are optional;
// without both of them the sweep is a single capture at FocusMin.
type SweepRequest struct {
	FocusMin  int
	FocusMax  *int
	FocusStep *int
	Exposure  int
	Gain      int
	Aperture  *int
}

// SweepHandle identifies an accepted sweep and its jobs.
type SweepHandle struct {
	ID     string
	JobIDs []string
	Foci   []int
}

// SequencerOptions configures a Sequencer.
type SequencerOptions struct {
	// Base carries the camera type and which stage axes exist.
	Base            model.CameraConfig
	MaxQueuedSweeps int
}

type queuedSweep struct {
	id   string
	jobs []*Job
}

// Sequencer accepts sweeps and runs them one after another on a single
// background goroutine that exits whenever the queue is empty.
type Sequencer struct {
	store   Store
	worker  *Worker
	sweeps  repository.SweepRepository
	logger  *logger.Logger
	options SequencerOptions
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	last    time.Time
	queue   []queuedSweep
	running bool
	active  bool
	idle    chan struct{}
}

// NewSequencer creates a Sequencer. sweeps may be nil to disable history.
func NewSequencer(store Store, worker *Worker, sweeps repository.SweepRepository, options SequencerOptions, logger *logger.Logger) *Sequencer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sequencer{
		store:   store,
		worker:  worker,
		sweeps:  sweeps,
		logger:  logger,
		options: options,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// FocusValues expands a sweep range. Without max or a positive step the
// result is [min]; a max below min also yields [min].
func FocusValues(min int, max, step *int) []int {
	if max == nil || step == nil || *step <= 0 || *max < min {
		return []int{min}
	}
	n := (*max-min)/(*step) + 1
	values := make([]int, n)
	for i := range values {
		values[i] = min + i*(*step)
	}
	return values
}

// StartSweep writes a pending record for every job of the sweep and queues
// the sweep. It returns as soon as the records exist; captures run later.
func (s *Sequencer) StartSweep(ctx context.Context, req SweepRequest) (*SweepHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	foci := FocusValues(req.FocusMin, req.FocusMax, req.FocusStep)
	base := s.baseConfig(req)
	sweepID := ulid.MustNew(ulid.Timestamp(s.now()), rand.Reader).String()

	s.mu.Lock()
	if s.options.MaxQueuedSweeps > 0 && len(s.queue) >= s.options.MaxQueuedSweeps {
		s.mu.Unlock()
		return nil, ErrQueueFull
	}

	ids := s.allocateIDs(len(foci))
	jobs := make([]*Job, 0, len(foci))
	for i, focus := range foci {
		cfg := base
		if base.Focus != nil {
			cfg = base.WithFocus(focus)
		}
		meta := model.NewPendingMeta(ids[i], cfg, sweepID, i, storage.ImageFilename(ids[i]))
		// The swept focus is recorded even when no stage moves.
		meta.Focus = model.IntPtr(focus)
		if err := s.store.WriteMeta(meta); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("sweep %s: pending record %d of %d: %w", sweepID, i+1, len(foci), err)
		}
		jobs = append(jobs, &Job{Sequence: i, Config: cfg, Meta: meta})
	}

	s.queue = append(s.queue, queuedSweep{id: sweepID, jobs: jobs})
	if !s.running {
		s.running = true
		s.idle = make(chan struct{})
		go s.drain()
	}
	s.mu.Unlock()

	s.logger.Info("Sweep %s queued: %d capture(s), focus %v", sweepID, len(jobs), foci)
	s.record(sweepID, req, base, ids, foci)

	return &SweepHandle{ID: sweepID, JobIDs: ids, Foci: foci}, nil
}

func (s *Sequencer) baseConfig(req SweepRequest) model.CameraConfig {
	cfg := s.options.Base
	cfg.Exposure = req.Exposure
	cfg.Gain = req.Gain
	if cfg.Focus != nil {
		cfg.Focus = model.IntPtr(*cfg.Focus)
	}
	if cfg.Aperture != nil {
		aperture := *cfg.Aperture
		if req.Aperture != nil {
			aperture = *req.Aperture
		}
		cfg.Aperture = model.IntPtr(aperture)
	}
	return cfg
}

// allocateIDs hands out n second-resolution IDs from a clock that never
// repeats or goes backwards, skipping IDs already used in the store.
// Callers hold s.mu.
func (s *Sequencer) allocateIDs(n int) []string {
	t := s.now().Truncate(time.Second)
	if !s.last.IsZero() && !t.After(s.last) {
		t = s.last.Add(time.Second)
	}

	ids := make([]string, 0, n)
	for len(ids) < n {
		id := t.Format(storage.IDLayout)
		if !s.store.Exists(id) {
			ids = append(ids, id)
			s.last = t
		}
		t = t.Add(time.Second)
	}
	return ids
}

func (s *Sequencer) record(sweepID string, req SweepRequest, cfg model.CameraConfig, ids []string, foci []int) {
	if s.sweeps == nil {
		return
	}
	sweep := &model.Sweep{
		ID:         sweepID,
		CreatedAt:  s.now(),
		CameraType: cfg.CameraType,
		Exposure:   cfg.Exposure,
		Gain:       cfg.Gain,
		Aperture:   cfg.Aperture,
		FocusMin:   req.FocusMin,
		FocusMax:   req.FocusMax,
		FocusStep:  req.FocusStep,
		Jobs:       make([]model.SweepJob, len(ids)),
	}
	for i, id := range ids {
		sweep.Jobs[i] = model.SweepJob{ImageID: id, Sequence: i, Focus: foci[i]}
	}
	if err := s.sweeps.Insert(sweep); err != nil {
		s.logger.Warning("Recording sweep %s failed: %v", sweepID, err)
	}
}

func (s *Sequencer) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.active = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		sweep := s.queue[0]
		s.queue = s.queue[1:]
		s.active = true
		s.mu.Unlock()

		start := time.Now()
		s.worker.Run(s.ctx, sweep.jobs)
		s.logger.Info("Sweep %s finished in %s", sweep.id, time.Since(start).Round(time.Millisecond))
	}
}

// Pending returns the number of sweeps queued or in progress.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	if s.active {
		n++
	}
	return n
}

// Wait blocks until the queue is drained or ctx is done.
func (s *Sequencer) Wait(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		// A sweep queued after idle closed starts a new drain.
		return s.Wait(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close aborts the capture in progress. Remaining jobs are recorded as failed.
func (s *Sequencer) Close() {
	s.cancel()
}
