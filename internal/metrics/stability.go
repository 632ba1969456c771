package metrics

import (
	"math"

	"github.com/san-kum/broomsim/internal/sim"
)

// Stability is the share of frames whose deepest contact stayed within
// threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(f sim.FrameSample) {
	s.samples++
	if f.MaxPenetration > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// MaxPenetration is the deepest contact over the run.
type MaxPenetration struct {
	name  string
	depth float64
}

func NewMaxPenetration() *MaxPenetration {
	return &MaxPenetration{name: "max_penetration"}
}

func (m *MaxPenetration) Name() string { return m.name }

func (m *MaxPenetration) Observe(f sim.FrameSample) {
	m.depth = math.Max(m.depth, f.MaxPenetration)
}

func (m *MaxPenetration) Value() float64 { return m.depth }

func (m *MaxPenetration) Reset() { m.depth = 0 }
