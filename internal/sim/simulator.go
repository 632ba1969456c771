package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/config"
	"github.com/san-kum/broomsim/internal/control"
	"github.com/san-kum/broomsim/internal/driver"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/factory"
	"github.com/san-kum/broomsim/internal/physics"
	"github.com/san-kum/broomsim/internal/registry"
	"github.com/san-kum/broomsim/internal/render"
	"github.com/san-kum/broomsim/internal/scene"
)

// orbitSpeed is the angular speed of the scripted camera, rad/s.
const orbitSpeed = 0.2

// Simulator owns one scene and advances it a frame at a time. Nothing in
// it is global, so several can run side by side.
type Simulator struct {
	cfg      *config.Config
	logger   *log.Logger
	world    *physics.World
	proxies  *render.Scene
	registry *registry.Registry
	scene    *scene.Scene
	driver   *driver.Driver
	camera   control.Camera
	policy   SpawnPolicy

	frame     int
	metrics   []Metric
	observers []Observer
}

type Option func(*options)

type options struct {
	logger *log.Logger
	camera control.Camera
}

func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithCamera overrides the camera built from the config.
func WithCamera(c control.Camera) Option { return func(o *options) { o.camera = c } }

// New builds the world and the fixed scene from cfg.
func New(cfg *config.Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	s := &Simulator{
		cfg:     cfg,
		logger:  o.logger,
		proxies: render.NewScene(),
	}

	s.world = physics.New(
		physics.WithFixedTimestep(cfg.World.FixedTimestep),
		physics.WithIterations(cfg.World.SolverIterations),
	)
	if err := s.world.Initialize(cfg.World.Gravity); err != nil {
		return nil, err
	}

	filters, err := scene.Filters(cfg)
	if err != nil {
		return nil, err
	}

	seed := cfg.Spawn.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	fac := factory.New(s.world, filters,
		factory.WithMargin(cfg.Bodies.Margin),
		factory.WithFriction(cfg.Bodies.Friction),
		factory.WithRand(rand.New(rand.NewSource(seed))),
	)

	spawn := registry.DefaultSpawnConfig()
	spawn.MinRadius, spawn.MaxRadius = cfg.Spawn.MinRadius, cfg.Spawn.MaxRadius
	spawn.MinScale, spawn.MaxScale = cfg.Spawn.MinScale, cfg.Spawn.MaxScale
	spawn.Restitution = cfg.Bodies.Restitution
	s.registry = registry.New(s.world, fac, s.proxies,
		registry.WithLogger(s.logger),
		registry.WithRand(rand.New(rand.NewSource(seed+1))),
		registry.WithSpawnConfig(spawn),
	)

	if s.scene, err = scene.Build(cfg, s.registry, fac); err != nil {
		return nil, err
	}
	s.driver = driver.New(s.world, s.scene.Broom.Body, cfg.Broom.Offset, cfg.Broom.AlignOrientation)

	if s.policy, err = NewSpawnPolicy(cfg); err != nil {
		return nil, err
	}

	s.camera = o.camera
	if s.camera == nil {
		s.camera = newCamera(cfg.Camera)
	}

	s.logger.Debug("scene built",
		"bodies", s.world.BodyCount(),
		"policy", s.policy.Name(),
		"spawn_points", len(s.scene.SpawnPositions),
		"seed", seed)
	return s, nil
}

func newCamera(c config.CameraConfig) control.Camera {
	switch c.Mode {
	case config.CameraFixed:
		return control.NewFixed(dynamo.NewPose(c.Position))
	case config.CameraOrbit:
		radius := math.Hypot(c.Position[0], c.Position[2])
		return control.NewOrbit(mgl64.Vec3{}, radius, c.PinHeight, orbitSpeed)
	default:
		return control.NewManual(control.ManualConfig{
			Position:  c.Position,
			PinHeight: c.PinHeight,
			MoveSpeed: c.MoveSpeed,
			LookSpeed: c.LookSpeed,
		})
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// AddListener forwards spawn and destroy events from the registry.
func (s *Simulator) AddListener(l registry.Listener) { s.registry.AddListener(l) }

func (s *Simulator) Config() *config.Config       { return s.cfg }
func (s *Simulator) World() *physics.World        { return s.world }
func (s *Simulator) Registry() *registry.Registry { return s.registry }
func (s *Simulator) Proxies() *render.Scene       { return s.proxies }
func (s *Simulator) Scene() *scene.Scene          { return s.scene }
func (s *Simulator) Camera() control.Camera       { return s.camera }
func (s *Simulator) Policy() SpawnPolicy          { return s.policy }
func (s *Simulator) FrameCount() int              { return s.frame }
func (s *Simulator) Stats() dynamo.Stats          { return s.registry.Stats() }

// population is every body that can move: all entries except the plane.
func (s *Simulator) population() int {
	return s.registry.Len() - 1
}

// Frame advances the scene by dt: camera and broom, one world step, pose
// sync, eviction, spawning, then metrics and observers. A failing stage is
// logged and recorded; the stages after it still run.
func (s *Simulator) Frame(dt float64) (FrameReport, error) {
	s.frame++
	rep := FrameReport{FrameSample: FrameSample{Frame: s.frame, Dt: dt}}
	fail := func(stage Stage, err error) {
		se := &StageError{Stage: stage, Frame: s.frame, Err: err}
		s.logger.Warn("frame stage failed", "frame", s.frame, "stage", stage, "err", err)
		rep.Errors = append(rep.Errors, se)
	}

	if dt > 0 && !math.IsInf(dt, 0) {
		s.camera.Update(dt)
	}
	if err := s.driver.Drive(s.camera.Pose(), dt); err != nil {
		fail(StageDrive, err)
	}

	n, err := s.world.Step(dt, s.cfg.World.MaxSubSteps)
	if err != nil {
		fail(StageStep, err)
	}
	rep.SubSteps = n

	if synced := s.registry.SyncAllFromWorld(); synced != s.registry.Len() {
		fail(StageSync, fmt.Errorf("synced %d of %d proxies: %w", synced, s.registry.Len(), dynamo.ErrUnknownBody))
	}

	evicted, err := s.registry.EvictBelow(s.cfg.Eviction.ThresholdY)
	if err != nil {
		fail(StageEvict, err)
	}
	rep.Evicted = evicted

	if s.policy.Due(s.frame, s.population()) && s.roomFor() {
		spawned, err := s.registry.SpawnBatch(s.scene.SpawnPositions,
			s.cfg.Spawn.SpheresPerPosition, s.cfg.Spawn.BlocksPerPosition)
		if err != nil {
			fail(StageSpawn, err)
		}
		rep.Spawned = spawned
	}

	step := s.world.LastStepStats()
	rep.Time = s.world.SimulatedTime()
	rep.Stats = s.registry.Stats()
	rep.Contacts = step.Contacts
	rep.MaxPenetration = step.MaxPenetration
	rep.KineticEnergy = s.world.KineticEnergy()

	for _, m := range s.metrics {
		m.Observe(rep.FrameSample)
	}
	for _, o := range s.observers {
		o.OnFrame(rep.FrameSample)
	}
	return rep, errors.Join(rep.Errors...)
}

func (s *Simulator) roomFor() bool {
	limit := s.cfg.Spawn.MaxLiveBodies
	if limit == 0 {
		return true
	}
	if s.registry.Stats().InScene+s.cfg.InitialPopulation() > limit {
		s.logger.Debug("spawn skipped at body cap", "in_scene", s.registry.Stats().InScene, "cap", limit)
		return false
	}
	return true
}

// Run drives Frame from clock until ctx is done or opts.Frames frames have
// run. Stage failures are collected in the result and do not stop the run.
func (s *Simulator) Run(ctx context.Context, clock Clock, opts RunOptions) (*Result, error) {
	if opts.Frames < 0 {
		return nil, fmt.Errorf("frames must not be negative, got %d", opts.Frames)
	}
	result := &Result{
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	if opts.Record && opts.Frames > 0 {
		result.Samples = make([]FrameSample, 0, opts.Frames)
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	for i := 0; opts.Frames == 0 || i < opts.Frames; i++ {
		select {
		case <-ctx.Done():
			result.Canceled = true
			s.finish(result)
			return result, ctx.Err()
		default:
		}

		rep, _ := s.Frame(clock.Tick())
		result.Frames++
		result.Errors = append(result.Errors, rep.Errors...)
		if opts.Record {
			result.Samples = append(result.Samples, rep.FrameSample)
		}
	}

	s.finish(result)
	return result, nil
}

func (s *Simulator) finish(result *Result) {
	result.Time = s.world.SimulatedTime()
	result.Stats = s.registry.Stats()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}
