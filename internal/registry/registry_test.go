package registry_test

import (
	"io"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/broomsim/internal/collision"
	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/factory"
	"github.com/san-kum/broomsim/internal/physics"
	"github.com/san-kum/broomsim/internal/registry"
	"github.com/san-kum/broomsim/internal/render"
)

type recorder struct {
	spawned, destroyed []dynamo.BodyID
}

func (r *recorder) OnSpawned(e registry.Entry)   { r.spawned = append(r.spawned, e.Body) }
func (r *recorder) OnDestroyed(e registry.Entry) { r.destroyed = append(r.destroyed, e.Body) }

var spawnPoints = []mgl64.Vec3{
	{30, 30, -50},
	{-30, 30, 50},
	{70, 30, 70},
	{-70, 30, -70},
}

var _ = Describe("Registry", func() {
	var (
		world   *physics.World
		fac     *factory.Factory
		scene   *render.Scene
		reg     *registry.Registry
		events  *recorder
		logger  *log.Logger
		plane   registry.Entry
		ballDef factory.BodySpec
	)

	BeforeEach(func() {
		world = physics.New()
		Expect(world.Initialize(mgl64.Vec3{0, -10, 0})).To(Succeed())
		fac = factory.New(world, collision.NewRegistry(), factory.WithRand(rand.New(rand.NewSource(7))))
		scene = render.NewScene()
		logger = log.New(io.Discard)
		reg = registry.New(world, fac, scene,
			registry.WithLogger(logger),
			registry.WithRand(rand.New(rand.NewSource(42))))
		events = &recorder{}
		reg.AddListener(events)

		var err error
		plane, err = reg.Adopt(factory.BodySpec{
			Label: "plane",
			Shape: physics.Box(mgl64.Vec3{100, 0.5, 100}),
			Pose:  dynamo.IdentityPose(),
			Group: collision.NamePlane,
		}, false)
		Expect(err).NotTo(HaveOccurred())

		ballDef = factory.BodySpec{
			Label: "ball",
			Shape: physics.Sphere(1),
			Pose:  dynamo.NewPose(mgl64.Vec3{0, 10, 0}),
			Mass:  1,
			Group: collision.NameB,
		}
	})

	Describe("Register", func() {
		It("adds the proxy to the scene", func() {
			Expect(reg.Len()).To(Equal(1))
			Expect(scene.Len()).To(Equal(1))
		})

		It("rejects a duplicate id", func() {
			err := reg.Register(plane.Body, &render.Proxy{Body: plane.Body}, false)
			Expect(err).To(MatchError(registry.ErrDuplicate))
			Expect(reg.Len()).To(Equal(1))
		})

		It("does not count scenery as spawned", func() {
			Expect(reg.Stats()).To(Equal(dynamo.Stats{}))
		})
	})

	Describe("Unregister", func() {
		It("keeps the body in the world", func() {
			Expect(reg.Unregister(plane.Body)).To(Succeed())
			Expect(reg.Len()).To(BeZero())
			Expect(scene.Len()).To(BeZero())
			Expect(world.BodyCount()).To(Equal(1))
		})

		It("fails for unknown ids", func() {
			Expect(reg.Unregister(999)).To(MatchError(dynamo.ErrUnknownBody))
		})
	})

	Describe("SyncAllFromWorld", func() {
		It("copies world poses into proxies", func() {
			e, err := reg.Adopt(ballDef, false)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 30; i++ {
				_, err := world.Step(1.0/60, 10)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(reg.SyncAllFromWorld()).To(Equal(2))

			pose, _ := world.Pose(e.Body)
			Expect(e.Proxy.Pose).To(Equal(pose))
			Expect(e.Proxy.Pose.Position.Y()).To(BeNumerically("<", 10))
		})
	})

	Describe("EvictBelow", func() {
		It("removes only bodies strictly below the threshold", func() {
			low := ballDef
			low.Pose = dynamo.NewPose(mgl64.Vec3{0, -6, 0})
			edge := ballDef
			edge.Pose = dynamo.NewPose(mgl64.Vec3{10, -5, 0})

			lowEntry, err := reg.Adopt(low, false)
			Expect(err).NotTo(HaveOccurred())
			_, err = reg.Adopt(edge, false)
			Expect(err).NotTo(HaveOccurred())

			n, err := reg.EvictBelow(-5)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(events.destroyed).To(ConsistOf(lowEntry.Body))
			Expect(reg.Len()).To(Equal(2))
			Expect(scene.Len()).To(Equal(2))
			Expect(world.BodyCount()).To(Equal(2))

			_, ok := world.Pose(lowEntry.Body)
			Expect(ok).To(BeFalse())
			Expect(reg.Stats().TotalDestroyed).To(BeZero())

			stale := lowEntry.Proxy.Pose
			_, err = world.Step(1.0/60, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.SyncAllFromWorld()).To(Equal(reg.Len()))
			Expect(lowEntry.Proxy.Pose).To(Equal(stale))
		})

		It("counts only spawned bodies as destroyed", func() {
			low := ballDef
			low.Pose = dynamo.NewPose(mgl64.Vec3{0, -6, 0})
			_, err := reg.Adopt(low, false)
			Expect(err).NotTo(HaveOccurred())
			_, err = reg.SpawnBatch(spawnPoints[:1], 1, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(world.SetPose(events.spawned[0], dynamo.NewPose(mgl64.Vec3{0, -100, 0}))).To(Succeed())

			n, err := reg.EvictBelow(-5)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(events.destroyed).To(HaveLen(2))
			Expect(reg.Stats()).To(Equal(dynamo.Stats{InScene: 0, TotalSpawned: 1, TotalDestroyed: 1}))
		})

		It("never evicts driven bodies", func() {
			driven := ballDef
			driven.Mass = 0
			driven.Pose = dynamo.NewPose(mgl64.Vec3{0, -50, 0})
			_, err := reg.Adopt(driven, true)
			Expect(err).NotTo(HaveOccurred())

			n, err := reg.EvictBelow(-5)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})

		It("never evicts pinned bodies", func() {
			Expect(world.SetPose(plane.Body, dynamo.NewPose(mgl64.Vec3{0, -50, 0}))).To(Succeed())
			Expect(reg.Pin(plane.Body)).To(Succeed())

			n, err := reg.EvictBelow(-5)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
			Expect(reg.Pin(12345)).To(MatchError(dynamo.ErrUnknownBody))
		})

		It("breaks constraints before removing the body", func() {
			anchor := ballDef
			anchor.Mass = 0
			anchor.Pose = dynamo.NewPose(mgl64.Vec3{0, 20, 0})
			a, err := reg.Adopt(anchor, true)
			Expect(err).NotTo(HaveOccurred())

			low := ballDef
			low.Pose = dynamo.NewPose(mgl64.Vec3{0, -20, 0})
			b, err := reg.Adopt(low, false)
			Expect(err).NotTo(HaveOccurred())

			_, err = world.AddHinge(physics.HingeDef{
				BodyA: a.Body, BodyB: b.Body,
				PivotB: mgl64.Vec3{0, 40, 0},
				AxisA:  mgl64.Vec3{0, 0, 1}, AxisB: mgl64.Vec3{0, 0, 1},
			}, true)
			Expect(err).NotTo(HaveOccurred())

			n, err := reg.EvictBelow(-5)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(world.ConstraintCount()).To(BeZero())
			Expect(world.ConstraintsOf(a.Body)).To(BeEmpty())
		})

		It("is a no-op on an empty scene", func() {
			Expect(reg.Unregister(plane.Body)).To(Succeed())
			n, err := reg.EvictBelow(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("SpawnBatch", func() {
		It("creates spheres then blocks at every position", func() {
			n, err := reg.SpawnBatch(spawnPoints, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(8))
			Expect(events.spawned).To(HaveLen(8))
			Expect(reg.Stats()).To(Equal(dynamo.Stats{InScene: 8, TotalSpawned: 8}))
			Expect(world.BodyCount()).To(Equal(9))

			var radius float64
			var extent mgl64.Vec3
			for i, id := range events.spawned {
				e, ok := reg.Lookup(id)
				Expect(ok).To(BeTrue())
				body, ok := world.Body(id)
				Expect(ok).To(BeTrue())
				Expect(body.Pose.Position).To(Equal(spawnPoints[i/2]))

				if i%2 == 0 {
					Expect(e.Proxy.Kind).To(Equal(render.KindSphere))
					Expect(body.Mass).To(Equal(1.0))
					Expect(e.Proxy.Radius).To(BeNumerically(">=", 0.5))
					Expect(e.Proxy.Radius).To(BeNumerically("<", 5.5))
					if i == 0 {
						radius = e.Proxy.Radius
					}
					Expect(e.Proxy.Radius).To(Equal(radius))
				} else {
					Expect(e.Proxy.Kind).To(Equal(render.KindBox))
					Expect(body.Mass).To(Equal(0.3))
					for axis := 0; axis < 3; axis++ {
						Expect(e.Proxy.Scale[axis]).To(BeNumerically(">=", 3))
						Expect(e.Proxy.Scale[axis]).To(BeNumerically("<", 10))
					}
					if i == 1 {
						extent = e.Proxy.Scale
					}
					Expect(e.Proxy.Scale).To(Equal(extent))
				}
				Expect(body.Restitution).To(Equal(0.8))
			}
		})

		It("counts an evicted spawn once", func() {
			_, err := reg.SpawnBatch(spawnPoints[:1], 1, 0)
			Expect(err).NotTo(HaveOccurred())
			id := events.spawned[0]
			Expect(world.SetPose(id, dynamo.NewPose(mgl64.Vec3{0, -100, 0}))).To(Succeed())

			n, err := reg.EvictBelow(-5)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(reg.Stats()).To(Equal(dynamo.Stats{InScene: 0, TotalSpawned: 1, TotalDestroyed: 1}))
		})

		It("continues past a failed creation", func() {
			cfg := registry.DefaultSpawnConfig()
			cfg.Group = "missing"
			broken := registry.New(world, fac, scene,
				registry.WithLogger(logger),
				registry.WithSpawnConfig(cfg))

			n, err := broken.SpawnBatch(spawnPoints, 1, 1)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
			Expect(n).To(BeZero())
			Expect(world.BodyCount()).To(Equal(1))
		})

		It("rejects negative counts", func() {
			_, err := reg.SpawnBatch(spawnPoints, -1, 1)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})

		It("ids are never reused", func() {
			_, err := reg.SpawnBatch(spawnPoints[:1], 1, 1)
			Expect(err).NotTo(HaveOccurred())
			first := append([]dynamo.BodyID(nil), events.spawned...)
			for _, id := range first {
				Expect(world.SetPose(id, dynamo.NewPose(mgl64.Vec3{0, -100, 0}))).To(Succeed())
			}
			_, err = reg.EvictBelow(-5)
			Expect(err).NotTo(HaveOccurred())

			_, err = reg.SpawnBatch(spawnPoints[:1], 1, 1)
			Expect(err).NotTo(HaveOccurred())
			for _, id := range events.spawned[2:] {
				Expect(first).NotTo(ContainElement(id))
			}
		})
	})

	Describe("Adopt", func() {
		It("removes the body again when registration fails", func() {
			failing := registry.New(world, fakeCreator{world: world, id: plane.Body}, scene, registry.WithLogger(logger))
			_, err := failing.Adopt(ballDef, false)
			Expect(err).NotTo(HaveOccurred())
			_, err = failing.Adopt(ballDef, false)
			Expect(err).To(MatchError(registry.ErrDuplicate))
			Expect(world.BodyCount()).To(BeZero())
			Expect(failing.Len()).To(Equal(1))
		})
	})
})

// fakeCreator always hands out the same id so the second adoption collides.
type fakeCreator struct {
	world *physics.World
	id    dynamo.BodyID
}

func (f fakeCreator) CreateBody(spec factory.BodySpec) (dynamo.BodyID, *render.Proxy, error) {
	return f.id, &render.Proxy{Body: f.id}, nil
}
