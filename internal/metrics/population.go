package metrics

import "github.com/san-kum/broomsim/internal/sim"

// PeakPopulation is the most spawned bodies alive at once.
type PeakPopulation struct {
	name string
	peak int
}

func NewPeakPopulation() *PeakPopulation {
	return &PeakPopulation{name: "peak_population"}
}

func (p *PeakPopulation) Name() string { return p.name }

func (p *PeakPopulation) Observe(s sim.FrameSample) {
	p.peak = max(p.peak, s.Stats.InScene)
}

func (p *PeakPopulation) Value() float64 { return float64(p.peak) }

func (p *PeakPopulation) Reset() { p.peak = 0 }

// EvictionRate is bodies evicted per simulated second.
type EvictionRate struct {
	name    string
	evicted int
	time    float64
}

func NewEvictionRate() *EvictionRate {
	return &EvictionRate{name: "eviction_rate"}
}

func (e *EvictionRate) Name() string { return e.name }

func (e *EvictionRate) Observe(s sim.FrameSample) {
	e.evicted += s.Evicted
	e.time = s.Time
}

func (e *EvictionRate) Value() float64 {
	if e.time <= 0 {
		return 0
	}
	return float64(e.evicted) / e.time
}

func (e *EvictionRate) Reset() {
	e.evicted = 0
	e.time = 0
}

// StepLoad is the mean number of physics sub-steps per frame.
type StepLoad struct {
	name     string
	substeps int
	samples  int
}

func NewStepLoad() *StepLoad {
	return &StepLoad{name: "substeps_per_frame"}
}

func (l *StepLoad) Name() string { return l.name }

func (l *StepLoad) Observe(s sim.FrameSample) {
	l.substeps += s.SubSteps
	l.samples++
}

func (l *StepLoad) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return float64(l.substeps) / float64(l.samples)
}

func (l *StepLoad) Reset() {
	l.substeps = 0
	l.samples = 0
}

// Default returns a fresh set of every metric above.
func Default() []sim.Metric {
	return []sim.Metric{
		NewEnergy(),
		NewPeakEnergy(),
		NewPeakPopulation(),
		NewEvictionRate(),
		NewMaxPenetration(),
		NewStability(0.1),
		NewStepLoad(),
	}
}
