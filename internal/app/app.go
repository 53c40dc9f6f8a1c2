package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"camserver/internal/config"
	"camserver/internal/hardware"
	"camserver/internal/hardware/astro"
	"camserver/internal/hardware/dummy"
	"camserver/internal/hardware/webcam"
	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/repository/sqlite"
	"camserver/internal/route"
	"camserver/internal/service/archive"
	"camserver/internal/service/capture"
	"camserver/internal/service/events"
	"camserver/internal/service/imaging"
	"camserver/internal/service/storage"
	"camserver/internal/service/websocket"
)

const (
	eventBuffer     = 64
	shutdownTimeout = 30 * time.Second
	drainTimeout    = 10 * time.Second
)

// interruptedMessage marks records a previous process left pending.
const interruptedMessage = "interrupted by restart"

// App owns every long-lived component of the server.
type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	sweeps    *sqlite.SweepRepository
	store     *storage.Store
	device    *hardware.Device
	bus       *events.Bus
	hub       *websocket.HubService
	sequencer *capture.Sequencer
	archiver  *archive.Archiver
}

// NewApp builds the component graph from cfg.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	store, err := storage.NewStore(cfg.ImageDirectory, log)
	if err != nil {
		return nil, err
	}
	failed, err := store.FailPending(interruptedMessage)
	if err != nil {
		return nil, fmt.Errorf("recover pending captures: %w", err)
	}
	if len(failed) > 0 {
		log.Warning("Marked %d pending capture(s) as failed: %s", len(failed), interruptedMessage)
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	sweeps := sqlite.NewSweepRepository(db)

	cam, err := NewCamera(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	device := hardware.NewDevice(cam)

	bus := events.NewBus(log)
	hub := websocket.NewHubService(log)

	workerOptions := capture.WorkerOptions{
		CaptureTimeout:  cfg.CaptureTimeout,
		ThumbnailWidth:  cfg.ThumbnailWidth,
		ThumbnailHeight: cfg.ThumbnailHeight,
	}
	if cfg.FocusScoring {
		workerOptions.Scorer = imaging.NewFocusScorer(log)
	}
	worker := capture.NewWorker(device, store, imaging.NewThumbnailer(log), bus, workerOptions, log)
	sequencer := capture.NewSequencer(store, worker, sweeps, capture.SequencerOptions{
		Base:            cfg.CameraConfig(),
		MaxQueuedSweeps: cfg.MaxQueuedSweeps,
	}, log)

	a := &App{
		config:    cfg,
		logger:    log,
		db:        db,
		sweeps:    sweeps,
		store:     store,
		device:    device,
		bus:       bus,
		hub:       hub,
		sequencer: sequencer,
	}

	if cfg.ArchiveEnabled() {
		client, err := archive.NewS3Client(ctx, cfg.S3Region)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.archiver = archive.NewArchiver(client, store, cfg.S3Bucket, cfg.S3Prefix, log)
	}

	return a, nil
}

// NewCamera selects the camera adapter named in the configuration.
func NewCamera(cfg *config.Config, log *logger.Logger) (hardware.Camera, error) {
	var stage hardware.StageDriver
	if cfg.HasFocus || cfg.HasAperture {
		stage = hardware.NewSimStage(log)
	}

	switch cfg.CameraType() {
	case model.CameraDummy:
		return dummy.New(dummy.Options{Delay: cfg.DummyDelay, Stage: stage}, log), nil
	case model.CameraWebcam:
		return webcam.New(0, log), nil
	case model.CameraAstro:
		if stage == nil {
			stage = hardware.NewSimStage(log)
		}
		sensor := astro.NewSimulator(dummy.New(dummy.Options{Delay: cfg.DummyDelay}, log))
		return astro.New(sensor, stage, log), nil
	}
	return nil, fmt.Errorf("unsupported camera %q", cfg.Camera)
}

// Run serves HTTP until ctx is cancelled, then drains the sweep queue and
// shuts everything down.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	go a.hub.Run(hubCtx)
	hubEvents, cancelHubEvents := a.bus.Subscribe(eventBuffer)
	defer cancelHubEvents()
	go a.hub.Pump(hubCtx, hubEvents)

	if a.archiver != nil {
		archiveEvents, cancelArchive := a.bus.Subscribe(eventBuffer)
		defer cancelArchive()
		go a.archiver.Run(hubCtx, archiveEvents)
	}

	router := route.SetupRoutes(route.Services{
		Device:    a.device,
		Sequencer: a.sequencer,
		Store:     a.store,
		Sweeps:    a.sweeps,
		Hub:       a.hub,
	}, a.config, a.logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Focus sweep server")
	a.logger.Info("URL: http://localhost:%d", a.config.Port)
	a.logger.Info("Camera: %s (stage: %t)", a.device.Type(), a.device.HasStage())
	a.logger.Info("Images: %s", a.config.ImageDirectory)
	if a.archiver != nil {
		a.logger.Info("Archive: s3://%s/%s", a.config.S3Bucket, a.config.S3Prefix)
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			a.Close()
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}
	if err := a.sequencer.Wait(shutdownCtx); err != nil {
		a.logger.Warning("Sweep queue not drained, aborting captures: %v", err)
	}
	a.Close()
	return nil
}

// Close aborts captures in progress, idles the stage and closes the database.
func (a *App) Close() {
	a.sequencer.Close()
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.sequencer.Wait(ctx); err != nil {
		a.logger.Warning("Capture queue did not drain: %v", err)
	}
	if a.device.HasStage() {
		if err := a.device.CloseStage(); err != nil {
			a.logger.Warning("Closing stage: %v", err)
		}
	}
	a.bus.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Closing database: %v", err)
	}
}

// Store returns the image folder of the app.
func (a *App) Store() *storage.Store {
	return a.store
}

// Sweeps returns the sweep history repository.
func (a *App) Sweeps() *sqlite.SweepRepository {
	return a.sweeps
}
