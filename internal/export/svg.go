// Package export renders scene snapshots and run telemetry as SVG.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/broomsim/internal/sim"
	"github.com/san-kum/broomsim/internal/viz"
)

const background = "#0a0a0a"

// CanvasToSVG converts a Braille canvas to SVG, one circle per lit dot.
func CanvasToSVG(canvas *viz.Canvas, scale float64, theme viz.Theme) string {
	if canvas == nil {
		return ""
	}

	dotsW, dotsH := canvas.Dots()
	width := float64(dotsW) * scale
	height := float64(dotsH) * scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, background, string(theme.Primary))

	r := scale * 0.4
	for y := 0; y < dotsH; y++ {
		for x := 0; x < dotsW; x++ {
			if !canvas.IsSet(x, y) {
				continue
			}
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f"/>
`, float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// Series extracts one value per frame sample.
type Series func(sim.FrameSample) float64

// SeriesByName are the plottable frame sample columns.
var SeriesByName = map[string]Series{
	"in_scene":        func(s sim.FrameSample) float64 { return float64(s.Stats.InScene) },
	"total_spawned":   func(s sim.FrameSample) float64 { return float64(s.Stats.TotalSpawned) },
	"total_destroyed": func(s sim.FrameSample) float64 { return float64(s.Stats.TotalDestroyed) },
	"contacts":        func(s sim.FrameSample) float64 { return float64(s.Contacts) },
	"substeps":        func(s sim.FrameSample) float64 { return float64(s.SubSteps) },
	"max_penetration": func(s sim.FrameSample) float64 { return s.MaxPenetration },
	"kinetic_energy":  func(s sim.FrameSample) float64 { return s.KineticEnergy },
}

func SeriesNames() []string {
	names := make([]string, 0, len(SeriesByName))
	for n := range SeriesByName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SamplesToSVG plots one series against simulated time as a polyline.
func SamplesToSVG(samples []sim.FrameSample, series string, width, height int, strokeColor string) (string, error) {
	get, ok := SeriesByName[series]
	if !ok {
		return "", fmt.Errorf("unknown series %q (available: %v)", series, SeriesNames())
	}
	if len(samples) < 2 {
		return "", fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}

	minX, maxX := samples[0].Time, samples[0].Time
	minY, maxY := get(samples[0]), get(samples[0])
	for _, s := range samples {
		v := get(s)
		minX, maxX = min(minX, s.Time), max(maxX, s.Time)
		minY, maxY = min(minY, v), max(maxY, v)
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<text x="4" y="14" fill="%s" font-family="monospace" font-size="12">%s</text>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, background, strokeColor, series, strokeColor)

	for i, s := range samples {
		x := (s.Time - minX) / rangeX * float64(width)
		y := float64(height) - (get(s)-minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String(), nil
}
