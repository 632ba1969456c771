// Package automation runs scripted sequences of headless simulations and
// one-parameter sweeps.
package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/san-kum/broomsim/internal/config"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/optim"
	"github.com/san-kum/broomsim/internal/sim"
	"github.com/san-kum/broomsim/internal/storage"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`

	dir string
}

// ScenarioStep is a single headless run. Config, when set, is read relative
// to the scenario file and takes precedence over Preset.
type ScenarioStep struct {
	Name   string             `yaml:"name"`
	Preset string             `yaml:"preset"`
	Config string             `yaml:"config"`
	Frames int                `yaml:"frames"`
	Dt     float64            `yaml:"dt"`
	Seed   int64              `yaml:"seed"`
	Params map[string]float64 `yaml:"params"`
	SaveAs string             `yaml:"save_as"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: no steps: %w", path, dynamo.ErrConfiguration)
	}
	scenario.dir = filepath.Dir(path)

	return &scenario, nil
}

// StepResult is the outcome of one scenario step. RunID is empty unless the
// step was saved.
type StepResult struct {
	Name   string
	Result *sim.Result
	RunID  string
}

// Runner executes scenarios. Store may be nil, in which case save_as is
// ignored.
type Runner struct {
	Store  *storage.Store
	Logger *log.Logger
}

func (r Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

// stepConfig resolves the config a step runs with.
func (sc *Scenario) stepConfig(step ScenarioStep) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case step.Config != "":
		path := step.Config
		if !filepath.IsAbs(path) {
			path = filepath.Join(sc.dir, path)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case step.Preset != "":
		cfg = config.GetPreset(step.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v): %w", step.Preset, config.ListPresets(), dynamo.ErrConfiguration)
		}
	default:
		cfg = config.DefaultConfig()
	}
	if step.Seed != 0 {
		cfg.Spawn.Seed = step.Seed
	}
	return optim.Apply(cfg, step.Params)
}

// RunScenario executes all steps in order and stops at the first failure,
// returning the results gathered so far.
func (r Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))
	logger := r.logger()

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		if step.Frames <= 0 {
			return results, fmt.Errorf("step %d (%s): frames must be positive: %w", i+1, name, dynamo.ErrConfiguration)
		}
		logger.Info("running step", "step", i+1, "of", len(scenario.Steps), "name", name)

		cfg, err := scenario.stepConfig(step)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		dt := step.Dt
		if dt <= 0 {
			dt = cfg.World.FixedTimestep
		}

		result, err := optim.Headless(dt, step.Frames, logger.With("step", name))(ctx, cfg)
		if err != nil {
			return results, fmt.Errorf("step %d (%s) run: %w", i+1, name, err)
		}

		sr := StepResult{Name: name, Result: result}
		if step.SaveAs != "" && r.Store != nil {
			meta := storage.NewMetadata(step.SaveAs, cfg.Spawn.Seed, cfg.Spawn.Policy, dt, result)
			sr.RunID, err = r.Store.Save(meta, result.Samples)
			if err != nil {
				return results, fmt.Errorf("step %d (%s) save: %w", i+1, name, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// ParameterSweep runs one simulation per value of Param, evenly spaced over
// [Min, Max].
type ParameterSweep struct {
	Param    string
	Min, Max float64
	NumSteps int
	Frames   int
	Dt       float64
}

// SweepResult holds results from a parameter sweep
type SweepResult struct {
	ParamValue float64
	Result     *sim.Result
}

// Values returns the swept parameter values.
func (s *ParameterSweep) Values() []float64 {
	if s.NumSteps == 1 {
		return []float64{s.Min}
	}
	step := (s.Max - s.Min) / float64(s.NumSteps-1)
	vals := make([]float64, s.NumSteps)
	for i := range vals {
		vals[i] = s.Min + float64(i)*step
	}
	return vals
}

// RunSweep executes a parameter sweep against base.
func (r Runner) RunSweep(ctx context.Context, base *config.Config, sweep *ParameterSweep) ([]SweepResult, error) {
	if _, ok := optim.Params[sweep.Param]; !ok {
		return nil, fmt.Errorf("unknown parameter %q (available: %v): %w", sweep.Param, optim.ParamNames(), dynamo.ErrConfiguration)
	}
	if sweep.NumSteps < 1 || sweep.Frames < 1 {
		return nil, fmt.Errorf("sweep needs at least one step and one frame: %w", dynamo.ErrConfiguration)
	}
	dt := sweep.Dt
	if dt <= 0 {
		dt = base.World.FixedTimestep
	}

	logger := r.logger()
	eval := optim.Headless(dt, sweep.Frames, logger)
	vals := sweep.Values()
	results := make([]SweepResult, 0, len(vals))

	for i, v := range vals {
		cfg, err := optim.Apply(base, map[string]float64{sweep.Param: v})
		if err != nil {
			return results, err
		}
		result, err := eval(ctx, cfg)
		if err != nil {
			return results, err
		}
		results = append(results, SweepResult{ParamValue: v, Result: result})
		logger.Info("sweep", "point", i+1, "of", len(vals), sweep.Param, v)
	}

	return results, nil
}
