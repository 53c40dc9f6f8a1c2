package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"camserver/internal/hardware"
	"camserver/internal/hardware/hardwaretest"
	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/repository"
	"camserver/internal/service/events"
	"camserver/internal/service/storage"

	"github.com/stretchr/testify/require"
)

// ========================================
// Test Doubles
// ========================================

type stubThumbnailer struct {
	err error
}

func (s stubThumbnailer) Thumbnail(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("thumb"), nil
}

// sequenceScorer returns the next score on every call and fails once the
// list is exhausted.
type sequenceScorer struct {
	mu     sync.Mutex
	scores []float64
}

func (s *sequenceScorer) Score(data []byte) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scores) == 0 {
		return 0, errors.New("no score left")
	}
	score := s.scores[0]
	s.scores = s.scores[1:]
	return score, nil
}

// gatedCapturer blocks every capture until release is closed and flags
// overlapping calls.
type gatedCapturer struct {
	release chan struct{}
	entered chan struct{}
	active  int32
	overlap int32
	calls   int32
}

func newGatedCapturer() *gatedCapturer {
	return &gatedCapturer{release: make(chan struct{}), entered: make(chan struct{}, 128)}
}

func (g *gatedCapturer) Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error) {
	atomic.AddInt32(&g.calls, 1)
	if atomic.AddInt32(&g.active, 1) > 1 {
		atomic.StoreInt32(&g.overlap, 1)
	}
	defer atomic.AddInt32(&g.active, -1)

	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	time.Sleep(time.Millisecond)
	return []byte("frame"), nil
}

// flakyStore fails WriteMeta once failAfter writes have succeeded.
type flakyStore struct {
	*storage.Store
	mu        sync.Mutex
	writes    int
	failAfter int
}

func (f *flakyStore) WriteMeta(meta *model.ImageMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writes >= f.failAfter {
		return &storage.PersistenceError{Op: "write meta", ID: meta.ID, Err: errors.New("disk full")}
	}
	f.writes++
	return f.Store.WriteMeta(meta)
}

// evictingStore lists with a small limit after every thumbnail write, the
// way a client polling with ?max does while a sweep runs.
type evictingStore struct {
	*storage.Store
	max int
}

func (e *evictingStore) SaveThumbnail(id string, data []byte) error {
	if err := e.Store.SaveThumbnail(id, data); err != nil {
		return err
	}
	_, err := e.Store.List(e.max)
	return err
}

type memorySweeps struct {
	mu     sync.Mutex
	sweeps []model.Sweep
}

func (m *memorySweeps) Insert(sweep *model.Sweep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps = append(m.sweeps, *sweep)
	return nil
}

func (m *memorySweeps) GetByID(id string) (*model.Sweep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sweeps {
		if m.sweeps[i].ID == id {
			s := m.sweeps[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (m *memorySweeps) List(limit int) ([]model.Sweep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Sweep(nil), m.sweeps...), nil
}

func (m *memorySweeps) DeleteAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps = nil
	return nil
}

// ========================================
// Test Setup Helpers
// ========================================

type harness struct {
	store     *storage.Store
	sweeps    *memorySweeps
	bus       *events.Bus
	sequencer *Sequencer
}

type harnessOptions struct {
	capturer    Capturer
	store       Store
	thumbs      Thumbnailer
	scorer      Scorer
	base        model.CameraConfig
	maxQueued   int
	timeout     time.Duration
	withoutRepo bool
	// evictMax wraps the store in an evictingStore when positive.
	evictMax int
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	log := logger.Discard()

	store, err := storage.NewStore(t.TempDir(), log)
	require.NoError(t, err)

	if opts.capturer == nil {
		opts.capturer = hardware.NewDevice(hardwaretest.NewCamera(hardwaretest.Options{}))
	}
	if opts.store == nil {
		opts.store = store
	}
	if opts.evictMax > 0 {
		opts.store = &evictingStore{Store: store, max: opts.evictMax}
	}
	if opts.thumbs == nil {
		opts.thumbs = stubThumbnailer{}
	}

	h := &harness{store: store, sweeps: &memorySweeps{}, bus: events.NewBus(log)}
	worker := NewWorker(opts.capturer, opts.store, opts.thumbs, h.bus, WorkerOptions{
		CaptureTimeout:  opts.timeout,
		ThumbnailWidth:  200,
		ThumbnailHeight: 200,
		Scorer:          opts.scorer,
	}, log)

	var sweeps repository.SweepRepository
	if !opts.withoutRepo {
		sweeps = h.sweeps
	}
	h.sequencer = NewSequencer(opts.store, worker, sweeps, SequencerOptions{
		Base:            opts.base,
		MaxQueuedSweeps: opts.maxQueued,
	}, log)
	t.Cleanup(func() { closeAndWait(h.sequencer) })
	return h
}

// closeAndWait stops the sequencer and lets the drain goroutine finish
// before the temporary folder is removed.
func closeAndWait(s *Sequencer) {
	s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.Wait(ctx)
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.sequencer.Wait(ctx))
}

func (h *harness) states(t *testing.T, ids []string) []model.JobState {
	t.Helper()
	states := make([]model.JobState, 0, len(ids))
	for _, id := range ids {
		meta, err := h.store.ReadMeta(id)
		require.NoError(t, err)
		states = append(states, meta.State())
	}
	return states
}

func (h *harness) hasImage(id string) bool {
	_, err := os.Stat(filepath.Join(h.store.Dir(), storage.ImageFilename(id)))
	return err == nil
}

func intPtr(v int) *int { return &v }
