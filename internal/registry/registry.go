// Package registry pairs bodies with their proxies and owns their
// lifecycle: registration, per-frame pose sync, eviction and batch
// spawning.
package registry

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/factory"
	"github.com/san-kum/broomsim/internal/render"
)

var ErrDuplicate = errors.New("registry: body already registered")

// World is the part of the physics world the registry reads and prunes.
type World interface {
	Pose(id dynamo.BodyID) (dynamo.Pose, bool)
	RemoveBody(id dynamo.BodyID) error
	ConstraintsOf(id dynamo.BodyID) []dynamo.ConstraintID
	RemoveConstraint(id dynamo.ConstraintID) error
}

type Creator interface {
	CreateBody(spec factory.BodySpec) (dynamo.BodyID, *render.Proxy, error)
}

type Scene interface {
	Add(p *render.Proxy)
	Remove(p *render.Proxy) bool
}

// Listener receives lifecycle events.
type Listener interface {
	OnSpawned(e Entry)
	OnDestroyed(e Entry)
}

// Entry pairs a body with its proxy. Driven bodies are positioned from
// outside every frame. Neither driven nor pinned bodies are evicted.
type Entry struct {
	Body    dynamo.BodyID
	Proxy   *render.Proxy
	Driven  bool
	Pinned  bool
	Spawned bool
}

type Registry struct {
	world   World
	creator Creator
	scene   Scene
	logger  *log.Logger
	rng     *rand.Rand
	spawn   SpawnConfig

	entries   []Entry
	index     map[dynamo.BodyID]int
	live      int
	stats     dynamo.Stats
	listeners []Listener
}

type Option func(*Registry)

func WithLogger(l *log.Logger) Option { return func(r *Registry) { r.logger = l } }

func WithRand(rng *rand.Rand) Option { return func(r *Registry) { r.rng = rng } }

func WithSpawnConfig(c SpawnConfig) Option { return func(r *Registry) { r.spawn = c } }

func New(world World, creator Creator, scene Scene, opts ...Option) *Registry {
	r := &Registry{
		world:   world,
		creator: creator,
		scene:   scene,
		spawn:   DefaultSpawnConfig(),
		index:   make(map[dynamo.BodyID]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(1))
	}
	return r
}

func (r *Registry) AddListener(l Listener) { r.listeners = append(r.listeners, l) }

// Register pairs an existing body with its proxy and puts the proxy in the
// scene.
func (r *Registry) Register(id dynamo.BodyID, proxy *render.Proxy, driven bool) error {
	return r.insert(Entry{Body: id, Proxy: proxy, Driven: driven})
}

func (r *Registry) insert(e Entry) error {
	if e.Proxy == nil {
		return &dynamo.BodyError{Op: "register", Body: e.Body, Wrapped: fmt.Errorf("nil proxy: %w", dynamo.ErrConfiguration)}
	}
	if _, ok := r.index[e.Body]; ok {
		return &dynamo.BodyError{Op: "register", Body: e.Body, Wrapped: ErrDuplicate}
	}
	r.index[e.Body] = len(r.entries)
	r.entries = append(r.entries, e)
	r.scene.Add(e.Proxy)
	if e.Spawned {
		r.live++
		r.stats.TotalSpawned++
	}
	return nil
}

// Unregister forgets a body and removes its proxy from the scene. The body
// itself stays in the world.
func (r *Registry) Unregister(id dynamo.BodyID) error {
	_, err := r.remove(id)
	return err
}

func (r *Registry) remove(id dynamo.BodyID) (Entry, error) {
	i, ok := r.index[id]
	if !ok {
		return Entry{}, &dynamo.BodyError{Op: "unregister", Body: id, Wrapped: dynamo.ErrUnknownBody}
	}
	e := r.entries[i]
	last := len(r.entries) - 1
	r.entries[i] = r.entries[last]
	r.index[r.entries[i].Body] = i
	r.entries[last] = Entry{}
	r.entries = r.entries[:last]
	delete(r.index, id)

	r.scene.Remove(e.Proxy)
	if e.Spawned {
		r.live--
	}
	return e, nil
}

// Adopt creates a body through the creator and registers it. If
// registration fails the body is taken back out of the world.
func (r *Registry) Adopt(spec factory.BodySpec, driven bool) (Entry, error) {
	return r.adopt(spec, driven, false)
}

func (r *Registry) adopt(spec factory.BodySpec, driven, spawned bool) (Entry, error) {
	id, proxy, err := r.creator.CreateBody(spec)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Body: id, Proxy: proxy, Driven: driven, Spawned: spawned}
	if err := r.insert(e); err != nil {
		if rmErr := r.world.RemoveBody(id); rmErr != nil {
			return Entry{}, errors.Join(err, rmErr)
		}
		return Entry{}, err
	}
	return e, nil
}

// Pin exempts a body from eviction.
func (r *Registry) Pin(id dynamo.BodyID) error {
	i, ok := r.index[id]
	if !ok {
		return &dynamo.BodyError{Op: "pin", Body: id, Wrapped: dynamo.ErrUnknownBody}
	}
	r.entries[i].Pinned = true
	return nil
}

// SyncAllFromWorld copies every body's pose into its proxy and returns how
// many were updated.
func (r *Registry) SyncAllFromWorld() int {
	n := 0
	for _, e := range r.entries {
		if pose, ok := r.world.Pose(e.Body); ok {
			e.Proxy.Pose = pose
			n++
		}
	}
	return n
}

// EvictBelow destroys every non-driven body whose height is strictly below
// y. Constraints on a body are removed before the body. A failure on one
// body does not stop the others.
func (r *Registry) EvictBelow(y float64) (int, error) {
	snapshot := make([]Entry, len(r.entries))
	copy(snapshot, r.entries)

	var errs []error
	evicted := 0
	for _, e := range snapshot {
		if e.Driven || e.Pinned {
			continue
		}
		pose, ok := r.world.Pose(e.Body)
		if !ok {
			pose = e.Proxy.Pose
		}
		if !(pose.Position[1] < y) {
			continue
		}
		if err := r.destroy(e); err != nil {
			errs = append(errs, err)
			continue
		}
		evicted++
	}
	if evicted > 0 {
		r.logger.Debug("evicted bodies", "count", evicted, "threshold", y, "in_scene", r.live)
	}
	return evicted, errors.Join(errs...)
}

func (r *Registry) destroy(e Entry) error {
	for _, c := range r.world.ConstraintsOf(e.Body) {
		if err := r.world.RemoveConstraint(c); err != nil {
			return err
		}
	}
	if err := r.world.RemoveBody(e.Body); err != nil && !errors.Is(err, dynamo.ErrUnknownBody) {
		return err
	}
	if _, err := r.remove(e.Body); err != nil {
		return err
	}
	if e.Spawned {
		r.stats.TotalDestroyed++
	}
	for _, l := range r.listeners {
		l.OnDestroyed(e)
	}
	return nil
}

// SpawnBatch creates spheresPer spheres then blocksPer blocks at every
// position. Sphere radius and block size are drawn once per batch; colours
// once per body. It returns how many bodies were created; failed creations
// are reported together without stopping the batch.
func (r *Registry) SpawnBatch(positions []mgl64.Vec3, spheresPer, blocksPer int) (int, error) {
	if spheresPer < 0 || blocksPer < 0 {
		return 0, fmt.Errorf("spawn counts %d/%d: %w", spheresPer, blocksPer, dynamo.ErrConfiguration)
	}
	batch := r.spawn.sample(r.rng)

	var errs []error
	created := 0
	for _, pos := range positions {
		for i := 0; i < spheresPer+blocksPer; i++ {
			spec := batch.block(pos)
			if i < spheresPer {
				spec = batch.sphere(pos)
			}
			e, err := r.adopt(spec, false, true)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			created++
			for _, l := range r.listeners {
				l.OnSpawned(e)
			}
		}
	}
	if created > 0 {
		r.logger.Debug("spawned batch", "count", created, "radius", batch.radius, "scale", batch.scale)
	}
	return created, errors.Join(errs...)
}

// Stats returns the counters for the counter display. InScene counts spawned
// bodies only, not the fixed scenery.
func (r *Registry) Stats() dynamo.Stats {
	s := r.stats
	s.InScene = r.live
	return s
}

func (r *Registry) Len() int { return len(r.entries) }

func (r *Registry) Lookup(id dynamo.BodyID) (Entry, bool) {
	i, ok := r.index[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Entries returns a copy of the current entries.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
