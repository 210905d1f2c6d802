package timeline

import (
	"fmt"
	"math/rand/v2"

	"compressure/internal/services"
)

// Source supplies the uniform draws in [0, 1) that drive buffer switching.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded PCG source. Equal seeds give equal draws.
func NewSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Switcher picks which of several buffers is active for each sample.
type Switcher struct {
	buffers int
	stay    float64
	rand    Source
	active  int
}

// NewSwitcher returns a switcher over n buffers that keeps the active buffer
// with probability stay on every draw.
func NewSwitcher(n int, stay float64, src Source) (*Switcher, error) {
	if n < 1 {
		return nil, services.Wrap(services.ErrInvalidParameter, "timeline", "new switcher",
			fmt.Sprintf("need at least one buffer, got %d", n), nil)
	}
	if !(stay >= 0 && stay <= 1) {
		return nil, services.Wrap(services.ErrInvalidParameter, "timeline", "new switcher",
			fmt.Sprintf("stay probability must be within [0, 1], got %v", stay), nil)
	}
	if src == nil {
		return nil, services.Wrap(services.ErrInvalidParameter, "timeline", "new switcher", "random source is nil", nil)
	}
	return &Switcher{buffers: n, stay: stay, rand: src}, nil
}

// Active returns the index of the active buffer.
func (s *Switcher) Active() int {
	return s.active
}

// Next consumes exactly one draw and returns the active buffer for the next
// sample. A draw at or above the stay probability moves to the next buffer.
func (s *Switcher) Next() int {
	if s.rand.Float64() >= s.stay {
		s.active = (s.active + 1) % s.buffers
	}
	return s.active
}
