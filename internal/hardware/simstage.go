package hardware

import (
	"errors"
	"sync"

	"camserver/internal/logger"
)

// SimStage is a StageDriver that only records positions. It backs the dummy
// camera and bench setups of the astro camera without a controller board.
type SimStage struct {
	logger *logger.Logger

	mu        sync.Mutex
	powered   bool
	focus     int
	aperture  int
	initCount int
	idleCount int
}

// NewSimStage creates an idle simulated stage.
func NewSimStage(logger *logger.Logger) *SimStage {
	return &SimStage{logger: logger}
}

func (s *SimStage) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powered = true
	s.initCount++
	s.logger.Info("Simulated stage initialized")
	return nil
}

func (s *SimStage) Idle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powered = false
	s.idleCount++
	s.logger.Info("Simulated stage idle")
	return nil
}

func (s *SimStage) SetFocus(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.powered {
		return errors.New("stage not initialized")
	}
	s.focus = v
	s.logger.Debug("Simulated stage focus=%d", v)
	return nil
}

func (s *SimStage) SetAperture(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.powered {
		return errors.New("stage not initialized")
	}
	s.aperture = v
	s.logger.Debug("Simulated stage aperture=%d", v)
	return nil
}

// Position returns the last focus and aperture set.
func (s *SimStage) Position() (focus, aperture int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus, s.aperture
}

// Counts returns how many times the driver was initialized and idled.
func (s *SimStage) Counts() (inits, idles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCount, s.idleCount
}
