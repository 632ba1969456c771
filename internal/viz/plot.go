package viz

import (
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/broomsim/internal/sim"
)

// Summary plots population and kinetic energy over a recorded run.
func Summary(samples []sim.FrameSample, width, height int) string {
	if len(samples) < 2 {
		return ""
	}
	pop := make([]float64, len(samples))
	energy := make([]float64, len(samples))
	for i, s := range samples {
		pop[i] = float64(s.Stats.InScene)
		energy[i] = s.KineticEnergy
	}
	opts := func(caption string) []asciigraph.Option {
		return []asciigraph.Option{asciigraph.Height(height), asciigraph.Width(width), asciigraph.Caption(caption)}
	}
	return asciigraph.Plot(pop, opts("objects in scene")...) + "\n\n" +
		asciigraph.Plot(energy, opts("kinetic energy")...)
}
