package sim

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/san-kum/broomsim/internal/config"
)

// Ensemble runs independent copies of a scene with consecutive seeds, one
// goroutine each. Every run owns its own world, so nothing is shared.
type Ensemble struct {
	cfg       *config.Config
	numRuns   int
	seedStart int64
	metrics   func() []Metric
	logger    *log.Logger
}

// NewEnsemble prepares numRuns runs. newMetrics is called once per run so
// metric state is never shared; it may be nil.
func NewEnsemble(cfg *config.Config, numRuns int, seedStart int64, newMetrics func() []Metric, logger *log.Logger) *Ensemble {
	if logger == nil {
		logger = log.Default()
	}
	return &Ensemble{cfg: cfg, numRuns: numRuns, seedStart: seedStart, metrics: newMetrics, logger: logger}
}

func (e *Ensemble) Run(ctx context.Context, dt float64, frames int) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			cfgCopy := e.cfg.Clone()
			cfgCopy.Spawn.Seed = e.seedStart + int64(idx)

			s, err := New(cfgCopy, WithLogger(e.logger.With("run", idx)))
			if err != nil {
				errs[idx] = err
				return
			}
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}
			results[idx], errs[idx] = s.Run(ctx, FixedClock{Dt: dt}, RunOptions{Frames: frames})
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
