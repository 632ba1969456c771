package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

const (
	DefaultFixedTimestep = 1.0 / 60.0
	DefaultIterations    = 10
	DefaultMaxSubSteps   = 10

	relaxIterations    = 3
	maxRotationPerStep = 0.25 * math.Pi
)

type worldState int

const (
	stateUninitialized worldState = iota
	stateReady
	stateStepping
)

// Contact is reported to the contact listener once per touching pair and
// sub-step.
type Contact struct {
	A, B        dynamo.BodyID
	Normal      mgl64.Vec3
	Points      int
	Penetration float64
}

type ContactListener func(Contact)

// StepStats summarises the most recent call to Step.
type StepStats struct {
	SubSteps       int     `json:"sub_steps"`
	Pairs          int     `json:"pairs"`
	Contacts       int     `json:"contacts"`
	MaxPenetration float64 `json:"max_penetration"`
}

type Option func(*World)

func WithFixedTimestep(h float64) Option {
	return func(w *World) {
		if h > 0 && !math.IsInf(h, 0) {
			w.fixedStep = h
		}
	}
}

func WithIterations(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.iterations = n
		}
	}
}

// World owns every rigid body and constraint. Bodies live in a dense slice
// indexed through a handle map; handles are never reused.
type World struct {
	state      worldState
	gravity    mgl64.Vec3
	fixedStep  float64
	iterations int
	accum      float64
	elapsed    float64

	nextBody       dynamo.BodyID
	nextConstraint dynamo.ConstraintID
	bodies         []*rigidBody
	index          map[dynamo.BodyID]int
	hinges         []*hinge
	hingeIndex     map[dynamo.ConstraintID]int
	noCollide      map[pairKey]int

	broadphase sweepAndPrune
	manifolds  []manifold
	contacts   []contactConstraint
	cache      map[pairKey]cachedManifold
	nextCache  map[pairKey]cachedManifold

	listener ContactListener
	stats    StepStats
}

func New(opts ...Option) *World {
	w := &World{
		fixedStep:  DefaultFixedTimestep,
		iterations: DefaultIterations,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Initialize prepares an empty world with the given gravity. A second call
// fails with ErrAlreadyInitialized and leaves the world untouched.
func (w *World) Initialize(gravity mgl64.Vec3) error {
	if w.state != stateUninitialized {
		return dynamo.ErrAlreadyInitialized
	}
	if !finiteVec(gravity) {
		return fmt.Errorf("gravity %v: %w", gravity, dynamo.ErrConfiguration)
	}
	w.gravity = gravity
	w.nextBody = 1
	w.nextConstraint = 1
	w.index = make(map[dynamo.BodyID]int)
	w.hingeIndex = make(map[dynamo.ConstraintID]int)
	w.noCollide = make(map[pairKey]int)
	w.cache = make(map[pairKey]cachedManifold)
	w.nextCache = make(map[pairKey]cachedManifold)
	w.state = stateReady
	return nil
}

func (w *World) Initialized() bool { return w.state != stateUninitialized }

func (w *World) Gravity() mgl64.Vec3 { return w.gravity }

func (w *World) SetGravity(g mgl64.Vec3) error {
	if err := w.mutable(); err != nil {
		return err
	}
	if !finiteVec(g) {
		return fmt.Errorf("gravity %v: %w", g, dynamo.ErrConfiguration)
	}
	w.gravity = g
	return nil
}

func (w *World) FixedTimestep() float64 { return w.fixedStep }

// SimulatedTime is the total time advanced by completed sub-steps.
func (w *World) SimulatedTime() float64 { return w.elapsed }

func (w *World) SetContactListener(fn ContactListener) { w.listener = fn }

func (w *World) mutable() error {
	switch w.state {
	case stateUninitialized:
		return dynamo.ErrNotInitialized
	case stateStepping:
		return dynamo.ErrReentrantStep
	}
	return nil
}

func (w *World) lookup(op string, id dynamo.BodyID) (*rigidBody, error) {
	if w.state == stateUninitialized {
		return nil, dynamo.ErrNotInitialized
	}
	i, ok := w.index[id]
	if !ok {
		return nil, &dynamo.BodyError{Op: op, Body: id, Wrapped: dynamo.ErrUnknownBody}
	}
	return w.bodies[i], nil
}

// AddBody validates def and inserts a new body. The returned handle stays
// valid until RemoveBody.
func (w *World) AddBody(def BodyDef) (dynamo.BodyID, error) {
	if err := w.mutable(); err != nil {
		return 0, err
	}
	shape, err := def.Shape.Validate()
	if err != nil {
		return 0, err
	}
	def.Shape = shape

	switch {
	case math.IsNaN(def.Mass) || math.IsInf(def.Mass, 0) || def.Mass < 0:
		return 0, fmt.Errorf("mass %v: %w", def.Mass, dynamo.ErrConfiguration)
	case !def.Pose.IsValid():
		return 0, fmt.Errorf("pose %v: %w", def.Pose, dynamo.ErrConfiguration)
	case math.IsNaN(def.Restitution) || math.IsNaN(def.Friction):
		return 0, fmt.Errorf("material: %w", dynamo.ErrConfiguration)
	case def.Restitution < 0 || def.Friction < 0:
		return 0, fmt.Errorf("restitution %v friction %v: %w", def.Restitution, def.Friction, dynamo.ErrConfiguration)
	}

	id := w.nextBody
	w.nextBody++
	w.index[id] = len(w.bodies)
	w.bodies = append(w.bodies, newRigidBody(id, def))
	return id, nil
}

// RemoveBody deletes a body. Bodies still referenced by a constraint are
// refused with ErrConstraintDependency.
func (w *World) RemoveBody(id dynamo.BodyID) error {
	if err := w.mutable(); err != nil {
		return err
	}
	i, ok := w.index[id]
	if !ok {
		return &dynamo.BodyError{Op: "remove", Body: id, Wrapped: dynamo.ErrUnknownBody}
	}
	if w.bodies[i].joints > 0 {
		return &dynamo.BodyError{Op: "remove", Body: id, Wrapped: dynamo.ErrConstraintDependency}
	}

	last := len(w.bodies) - 1
	w.bodies[i] = w.bodies[last]
	w.index[w.bodies[i].id] = i
	w.bodies[last] = nil
	w.bodies = w.bodies[:last]
	delete(w.index, id)
	return nil
}

// AddHinge joins two existing bodies. With disableCollisions the pair no
// longer generates contacts while the hinge lives.
func (w *World) AddHinge(def HingeDef, disableCollisions bool) (dynamo.ConstraintID, error) {
	if err := w.mutable(); err != nil {
		return 0, err
	}
	a, err := w.lookup("hinge", def.BodyA)
	if err != nil {
		return 0, err
	}
	b, err := w.lookup("hinge", def.BodyB)
	if err != nil {
		return 0, err
	}

	switch {
	case a == b:
		return 0, fmt.Errorf("hinge joins body %d to itself: %w", def.BodyA, dynamo.ErrConfiguration)
	case def.AxisA.Len() < 1e-9 || def.AxisB.Len() < 1e-9:
		return 0, fmt.Errorf("hinge axis is zero: %w", dynamo.ErrConfiguration)
	case !finiteVec(def.PivotA) || !finiteVec(def.PivotB) || !finiteVec(def.AxisA) || !finiteVec(def.AxisB):
		return 0, fmt.Errorf("hinge frame is not finite: %w", dynamo.ErrConfiguration)
	case def.Limits != nil && def.Limits.Lower > def.Limits.Upper:
		return 0, fmt.Errorf("hinge limits [%v, %v]: %w", def.Limits.Lower, def.Limits.Upper, dynamo.ErrConfiguration)
	case def.Motor != nil && def.Motor.MaxImpulse < 0:
		return 0, fmt.Errorf("motor max impulse %v: %w", def.Motor.MaxImpulse, dynamo.ErrConfiguration)
	}

	id := w.nextConstraint
	w.nextConstraint++
	j := newHinge(id, a, b, def, disableCollisions)
	a.joints++
	b.joints++
	if j.disableCollisions {
		w.noCollide[keyOf(a, b)]++
	}
	w.hingeIndex[id] = len(w.hinges)
	w.hinges = append(w.hinges, j)
	return id, nil
}

func (w *World) RemoveConstraint(id dynamo.ConstraintID) error {
	if err := w.mutable(); err != nil {
		return err
	}
	i, ok := w.hingeIndex[id]
	if !ok {
		return fmt.Errorf("constraint %d: %w", id, dynamo.ErrUnknownConstraint)
	}
	j := w.hinges[i]
	j.a.joints--
	j.b.joints--
	if j.disableCollisions {
		k := keyOf(j.a, j.b)
		if w.noCollide[k]--; w.noCollide[k] <= 0 {
			delete(w.noCollide, k)
		}
	}

	last := len(w.hinges) - 1
	w.hinges[i] = w.hinges[last]
	w.hingeIndex[w.hinges[i].id] = i
	w.hinges[last] = nil
	w.hinges = w.hinges[:last]
	delete(w.hingeIndex, id)
	return nil
}

// ConstraintsOf lists the constraints attached to a body.
func (w *World) ConstraintsOf(id dynamo.BodyID) []dynamo.ConstraintID {
	var out []dynamo.ConstraintID
	for _, j := range w.hinges {
		if j.a.id == id || j.b.id == id {
			out = append(out, j.id)
		}
	}
	return out
}

func (w *World) hingeByID(id dynamo.ConstraintID) (*hinge, error) {
	if w.state == stateUninitialized {
		return nil, dynamo.ErrNotInitialized
	}
	i, ok := w.hingeIndex[id]
	if !ok {
		return nil, fmt.Errorf("constraint %d: %w", id, dynamo.ErrUnknownConstraint)
	}
	return w.hinges[i], nil
}

func (w *World) EnableMotor(id dynamo.ConstraintID, m Motor) error {
	j, err := w.hingeByID(id)
	if err != nil {
		return err
	}
	if m.MaxImpulse < 0 || math.IsNaN(m.MaxImpulse) || math.IsNaN(m.TargetVelocity) {
		return fmt.Errorf("motor %+v: %w", m, dynamo.ErrConfiguration)
	}
	j.enableMotor(m)
	return nil
}

func (w *World) DisableMotor(id dynamo.ConstraintID) error {
	j, err := w.hingeByID(id)
	if err != nil {
		return err
	}
	j.disableMotor()
	return nil
}

func (w *World) SetLimits(id dynamo.ConstraintID, l Limits) error {
	j, err := w.hingeByID(id)
	if err != nil {
		return err
	}
	if l.Lower > l.Upper || math.IsNaN(l.Lower) || math.IsNaN(l.Upper) {
		return fmt.Errorf("hinge limits [%v, %v]: %w", l.Lower, l.Upper, dynamo.ErrConfiguration)
	}
	j.setLimits(l)
	return nil
}

func (w *World) ClearLimits(id dynamo.ConstraintID) error {
	j, err := w.hingeByID(id)
	if err != nil {
		return err
	}
	j.clearLimits()
	return nil
}

// HingeAngle returns the current relative angle of the hinge's bodies.
func (w *World) HingeAngle(id dynamo.ConstraintID) (float64, error) {
	j, err := w.hingeByID(id)
	if err != nil {
		return 0, err
	}
	return j.currentAngle(), nil
}

func (w *World) Pose(id dynamo.BodyID) (dynamo.Pose, bool) {
	i, ok := w.index[id]
	if !ok {
		return dynamo.Pose{}, false
	}
	return w.bodies[i].pose, true
}

func (w *World) Body(id dynamo.BodyID) (BodyState, bool) {
	i, ok := w.index[id]
	if !ok {
		return BodyState{}, false
	}
	return w.bodies[i].state(), true
}

// Bodies returns snapshots in storage order.
func (w *World) Bodies() []BodyState {
	out := make([]BodyState, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = b.state()
	}
	return out
}

func (w *World) BodyCount() int       { return len(w.bodies) }
func (w *World) ConstraintCount() int { return len(w.hinges) }
func (w *World) LastStepStats() StepStats {
	return w.stats
}

func (w *World) KineticEnergy() float64 {
	var e float64
	for _, b := range w.bodies {
		e += b.kineticEnergy()
	}
	return e
}

// SetPose teleports a body. Velocities are kept.
func (w *World) SetPose(id dynamo.BodyID, p dynamo.Pose) error {
	if err := w.mutable(); err != nil {
		return err
	}
	b, err := w.lookup("set pose", id)
	if err != nil {
		return err
	}
	if !p.IsValid() {
		return &dynamo.BodyError{Op: "set pose", Body: id, Wrapped: dynamo.ErrConfiguration}
	}
	b.pose = normalized(p)
	if !b.isDynamic() {
		b.hasTarget = false
		b.linVel, b.angVel = mgl64.Vec3{}, mgl64.Vec3{}
	}
	b.updateInertia()
	b.updateBounds(0)
	return nil
}

// MoveKinematic schedules a zero-mass body to arrive at target by the end of
// the next Step. Until then it moves with the velocity that covers the
// distance in dt, so dynamic bodies touching it are pushed rather than
// penetrated.
func (w *World) MoveKinematic(id dynamo.BodyID, target dynamo.Pose, dt float64) error {
	if err := w.mutable(); err != nil {
		return err
	}
	b, err := w.lookup("move", id)
	if err != nil {
		return err
	}
	if b.isDynamic() {
		return &dynamo.BodyError{Op: "move", Body: id, Wrapped: fmt.Errorf("body is dynamic: %w", dynamo.ErrConfiguration)}
	}
	if !target.IsValid() {
		return &dynamo.BodyError{Op: "move", Body: id, Wrapped: dynamo.ErrConfiguration}
	}
	target = normalized(target)

	b.linVel, b.angVel = mgl64.Vec3{}, mgl64.Vec3{}
	if dt > 0 && !math.IsInf(dt, 0) {
		b.linVel = target.Position.Sub(b.pose.Position).Mul(1 / dt)
		dq := target.Orientation.Mul(b.pose.Orientation.Conjugate())
		if dq.W < 0 {
			dq = dq.Scale(-1)
		}
		b.angVel = dq.V.Mul(2 / dt)
	}
	b.target = target
	b.hasTarget = true
	return nil
}

func (w *World) SetLinearVelocity(id dynamo.BodyID, v mgl64.Vec3) error {
	if err := w.mutable(); err != nil {
		return err
	}
	b, err := w.lookup("set velocity", id)
	if err != nil {
		return err
	}
	b.linVel = v
	return nil
}

func (w *World) SetAngularVelocity(id dynamo.BodyID, v mgl64.Vec3) error {
	if err := w.mutable(); err != nil {
		return err
	}
	b, err := w.lookup("set angular velocity", id)
	if err != nil {
		return err
	}
	b.angVel = v
	return nil
}

// ApplyImpulse applies an impulse at a world-space point.
func (w *World) ApplyImpulse(id dynamo.BodyID, impulse, point mgl64.Vec3) error {
	if err := w.mutable(); err != nil {
		return err
	}
	b, err := w.lookup("impulse", id)
	if err != nil {
		return err
	}
	b.applyImpulse(impulse, point.Sub(b.pose.Position))
	return nil
}

func (w *World) ApplyTorqueImpulse(id dynamo.BodyID, l mgl64.Vec3) error {
	if err := w.mutable(); err != nil {
		return err
	}
	b, err := w.lookup("torque impulse", id)
	if err != nil {
		return err
	}
	b.applyAngularImpulse(l)
	return nil
}

// Step advances the world by dt using fixed sub-steps of FixedTimestep,
// carrying the remainder to the next call. At most maxSubSteps are taken;
// maxSubSteps <= 0 takes a single step of exactly dt. It returns the number
// of sub-steps taken.
func (w *World) Step(dt float64, maxSubSteps int) (int, error) {
	switch w.state {
	case stateUninitialized:
		return 0, dynamo.ErrNotInitialized
	case stateStepping:
		return 0, dynamo.ErrReentrantStep
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return 0, fmt.Errorf("dt %v: %w", dt, dynamo.ErrInvalidTimestep)
	}

	w.state = stateStepping
	defer func() {
		w.settleKinematic()
		w.state = stateReady
	}()
	w.stats = StepStats{}

	if maxSubSteps <= 0 {
		if dt > 0 {
			w.subStep(dt)
		}
		return w.stats.SubSteps, nil
	}

	w.accum += dt
	// Compare in float before converting; a huge dt overflows int.
	var n int
	if steps := w.accum / w.fixedStep; steps >= float64(maxSubSteps+1) {
		// Drop the backlog rather than spiral.
		n = maxSubSteps
		w.accum = 0
	} else {
		n = int(steps)
		w.accum -= float64(n) * w.fixedStep
	}
	for i := 0; i < n; i++ {
		w.subStep(w.fixedStep)
	}
	return n, nil
}

func (w *World) subStep(h float64) {
	invH := 1 / h
	w.stats.SubSteps++

	w.collide(h)

	if cap(w.contacts) < len(w.manifolds) {
		w.contacts = make([]contactConstraint, len(w.manifolds))
	}
	w.contacts = w.contacts[:len(w.manifolds)]
	for i := range w.manifolds {
		m := &w.manifolds[i]
		var prev *cachedManifold
		if cm, ok := w.cache[keyOf(m.a, m.b)]; ok {
			prev = &cm
		}
		w.contacts[i].prepare(m, prev)
	}
	for _, j := range w.hinges {
		j.prepare()
	}

	w.integrateVelocities(h)

	for _, j := range w.hinges {
		j.warmStart()
	}
	for i := range w.contacts {
		w.contacts[i].warmStart()
	}

	for it := 0; it < w.iterations; it++ {
		for _, j := range w.hinges {
			j.solve(invH, true)
		}
		for i := range w.contacts {
			w.contacts[i].solve(invH, true)
		}
	}

	w.integratePositions(h)

	for _, j := range w.hinges {
		j.refresh()
	}
	for it := 0; it < relaxIterations; it++ {
		for _, j := range w.hinges {
			j.solve(invH, false)
		}
		for i := range w.contacts {
			w.contacts[i].solve(invH, false)
		}
	}

	for i := range w.contacts {
		w.contacts[i].applyRestitution()
	}

	clear(w.nextCache)
	for i := range w.contacts {
		c := &w.contacts[i]
		w.nextCache[keyOf(c.a, c.b)] = c.cached()
	}
	w.cache, w.nextCache = w.nextCache, w.cache

	for _, b := range w.bodies {
		b.updateBounds(0)
	}
	w.elapsed += h
}

func (w *World) shouldCollide(a, b *rigidBody) bool {
	if !a.isDynamic() && !b.isDynamic() {
		return false
	}
	if !a.filter.Collides(b.filter) {
		return false
	}
	return w.noCollide[keyOf(a, b)] == 0
}

func (w *World) collide(h float64) {
	for _, b := range w.bodies {
		b.updateBounds(h)
	}
	pairs := w.broadphase.find(w.bodies, w.shouldCollide)
	w.stats.Pairs += len(pairs)

	w.manifolds = w.manifolds[:0]
	for _, p := range pairs {
		var m manifold
		if !collide(p.a, p.b, p.a.pad+p.b.pad, &m) {
			continue
		}
		w.manifolds = append(w.manifolds, m)
		w.stats.Contacts += m.count
		depth := m.deepest()
		w.stats.MaxPenetration = math.Max(w.stats.MaxPenetration, depth)
		if w.listener != nil {
			w.listener(Contact{A: p.a.id, B: p.b.id, Normal: m.normal, Points: m.count, Penetration: depth})
		}
	}
}

func (w *World) integrateVelocities(h float64) {
	for _, b := range w.bodies {
		if !b.isDynamic() {
			continue
		}
		b.linVel = b.linVel.Add(w.gravity.Mul(h))
		if b.linDamping > 0 {
			b.linVel = b.linVel.Mul(math.Pow(1-b.linDamping, h))
		}
		if b.angDamping > 0 {
			b.angVel = b.angVel.Mul(math.Pow(1-b.angDamping, h))
		}
	}
}

// settleKinematic snaps driven bodies onto their targets and stops them.
func (w *World) settleKinematic() {
	for _, b := range w.bodies {
		if !b.hasTarget {
			continue
		}
		b.pose = b.target
		b.hasTarget = false
		b.linVel, b.angVel = mgl64.Vec3{}, mgl64.Vec3{}
		b.updateBounds(0)
	}
}

func (w *World) integratePositions(h float64) {
	for _, b := range w.bodies {
		if !b.isDynamic() {
			if b.hasTarget {
				b.pose = advance(b.pose, b.linVel, b.angVel, h)
			}
			continue
		}
		if rot := b.angVel.Len() * h; rot > maxRotationPerStep {
			b.angVel = b.angVel.Mul(maxRotationPerStep / rot)
		}
		b.pose = advance(b.pose, b.linVel, b.angVel, h)
		b.updateInertia()
	}
}

func advance(p dynamo.Pose, v, w mgl64.Vec3, h float64) dynamo.Pose {
	p.Position = p.Position.Add(v.Mul(h))
	spin := mgl64.Quat{W: 0, V: w}.Mul(p.Orientation).Scale(0.5 * h)
	p.Orientation = p.Orientation.Add(spin).Normalize()
	return p
}

func normalized(p dynamo.Pose) dynamo.Pose {
	if p.Orientation == (mgl64.Quat{}) {
		p.Orientation = mgl64.QuatIdent()
	}
	p.Orientation = p.Orientation.Normalize()
	return p
}

func finiteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
