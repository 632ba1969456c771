// Package viz is the terminal front end: a Bubble Tea live view that runs
// the simulation on its tick, draws it on a braille [Canvas] and shows the
// object counters beside it.
//
// Two views are available, a first-person wireframe from the camera
// ([Perspective]) and a map seen from above ([TopDown]).
//
// # Key Bindings
//
//	W/A/S/D - Move the camera (and the broom with it)
//	Arrows  - Look around
//	R       - Reset the camera
//	V       - Switch view
//	Space   - Pause/Resume
//	T       - Cycle color themes
//	?       - Show help overlay
package viz
