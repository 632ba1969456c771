// Package control produces the camera poses that drive the broom.
//
// Every producer implements [Camera]:
//
//   - [Fixed]: a constant pose
//   - [Manual]: first-person keyboard/mouse controls pinned to a height
//   - [Orbit]: a scripted circular sweep for headless runs
//
// # Usage
//
//	cam := control.NewManual(control.DefaultManualConfig())
//	cam.SetInput(control.Input{Forward: 1})
//	cam.Update(dt)
//	drv.Drive(cam.Pose(), dt)
package control
