package astro

import (
	"context"
	"sync"

	"camserver/internal/model"
)

// FrameSource produces the frames of a simulated sensor, usually a dummy camera.
type FrameSource interface {
	Capture(ctx context.Context, cfg model.CameraConfig) ([]byte, error)
}

// Simulator is a Sensor backed by a FrameSource, used on benches without
// the vendor SDK.
type Simulator struct {
	noise FrameSource

	mu       sync.Mutex
	controls map[string]int
}

// NewSimulator creates a simulated sensor reading frames from noise.
func NewSimulator(noise FrameSource) *Simulator {
	return &Simulator{
		noise:    noise,
		controls: make(map[string]int),
	}
}

func (s *Simulator) SetControl(name string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls[name] = value
	return nil
}

// Control returns the last value set for a control.
func (s *Simulator) Control(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.controls[name]
	return v, ok
}

func (s *Simulator) Capture(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	cfg := model.CameraConfig{
		CameraType: model.CameraAstro,
		Exposure:   s.controls[ControlExposure],
		Gain:       s.controls[ControlGain],
	}
	s.mu.Unlock()
	return s.noise.Capture(ctx, cfg)
}
