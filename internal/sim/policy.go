package sim

import (
	"fmt"

	"github.com/san-kum/broomsim/internal/config"
	"github.com/san-kum/broomsim/internal/dynamo"
)

// SpawnPolicy decides on which frames a batch is spawned.
type SpawnPolicy interface {
	Name() string
	// Due is called once per frame. frame starts at 1; population is the
	// number of bodies currently moving in the scene.
	Due(frame, population int) bool
}

// FixedInterval spawns every N frames.
type FixedInterval struct {
	N int
}

func (p FixedInterval) Name() string { return config.PolicyFixed }

func (p FixedInterval) Due(frame, _ int) bool {
	return p.N > 0 && frame%p.N == 0
}

// Population spawns when its own counter reaches the population, then
// restarts the count. The cadence slows as the scene fills up.
type Population struct {
	counter int
}

func (p *Population) Name() string { return config.PolicyPopulation }

func (p *Population) Due(_, population int) bool {
	p.counter++
	if population <= 0 || p.counter%population != 0 {
		return false
	}
	p.counter = 0
	return true
}

func NewSpawnPolicy(cfg *config.Config) (SpawnPolicy, error) {
	switch cfg.Spawn.Policy {
	case config.PolicyFixed:
		return FixedInterval{N: cfg.SpawnInterval()}, nil
	case config.PolicyPopulation:
		return &Population{}, nil
	}
	return nil, fmt.Errorf("spawn policy %q: %w", cfg.Spawn.Policy, dynamo.ErrConfiguration)
}
