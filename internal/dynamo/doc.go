// Package dynamo provides the core primitives shared by every part of the
// rigid-body scene:
//
//   - [Pose]: position + orientation of a body in world space
//   - [BodyID], [ConstraintID]: stable handles, never reused
//   - [Stats]: object counters consumed by the counter display
//   - the error taxonomy ([ErrConfiguration], [ErrInvalidTimestep], ...)
//
// # Example
//
//	w := physics.New()
//	_ = w.Initialize(mgl64.Vec3{0, -10, 0})
//	id, _ := w.AddBody(def)
//	if _, err := w.Step(1.0/60, 10); errors.Is(err, dynamo.ErrInvalidTimestep) {
//	    // calling contract violated
//	}
//
// # Thread Safety
//
// None of the types built on these primitives are safe for concurrent use.
// The simulation loop owns the world and registry exclusively.
package dynamo
