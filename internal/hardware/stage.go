package hardware

import (
	"fmt"
	"sync"
)

// StageDriver is the binding to the focus/aperture controller board.
type StageDriver interface {
	Init() error
	Idle() error
	SetFocus(v int) error
	SetAperture(v int) error
}

// StageHandle owns the lifecycle of one stage driver. The driver is
// initialized at most once while the handle is open and is only idled by an
// explicit Close.
type StageHandle struct {
	driver      StageDriver
	mu          sync.Mutex
	initialized bool
}

// NewStageHandle wraps a driver in a closed handle.
func NewStageHandle(driver StageDriver) *StageHandle {
	return &StageHandle{driver: driver}
}

// Init initializes the driver if it is not initialized yet.
func (s *StageHandle) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked()
}

func (s *StageHandle) initLocked() error {
	if s.initialized {
		return nil
	}
	if err := s.driver.Init(); err != nil {
		return fmt.Errorf("stage init: %w", err)
	}
	s.initialized = true
	return nil
}

// Apply moves the non-nil axes, initializing the stage first when needed.
func (s *StageHandle) Apply(focus, aperture *int) error {
	if focus == nil && aperture == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.initLocked(); err != nil {
		return err
	}
	if focus != nil {
		if err := s.driver.SetFocus(*focus); err != nil {
			return fmt.Errorf("set focus %d: %w", *focus, err)
		}
	}
	if aperture != nil {
		if err := s.driver.SetAperture(*aperture); err != nil {
			return fmt.Errorf("set aperture %d: %w", *aperture, err)
		}
	}
	return nil
}

// Close idles an initialized driver and releases the handle. A later Apply
// or Init opens it again.
func (s *StageHandle) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	if err := s.driver.Idle(); err != nil {
		return fmt.Errorf("stage idle: %w", err)
	}
	s.initialized = false
	return nil
}

// Initialized reports whether the driver is currently initialized.
func (s *StageHandle) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}
