package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/broomsim/internal/dynamo"
)

const maxPitch = 89 * math.Pi / 180

// ManualConfig sets the first-person controls.
type ManualConfig struct {
	Position  mgl64.Vec3
	PinHeight float64 // y is held here; NaN leaves it free
	MoveSpeed float64 // units per second
	LookSpeed float64 // degrees per unit of look input
}

func DefaultManualConfig() ManualConfig {
	return ManualConfig{
		Position:  DefaultPosition,
		PinHeight: 5,
		MoveSpeed: 20,
		LookSpeed: 0.3,
	}
}

// Input is the held movement state. Forward and Right are in [-1, 1].
type Input struct {
	Forward float64
	Right   float64
}

// Manual is a first-person camera. Movement is in the horizontal plane of
// the current yaw.
type Manual struct {
	cfg        ManualConfig
	position   mgl64.Vec3
	yaw, pitch float64
	input      Input
}

func NewManual(cfg ManualConfig) *Manual {
	m := &Manual{cfg: cfg, position: cfg.Position}
	m.pin()
	return m
}

// SetInput replaces the held movement state.
func (m *Manual) SetInput(in Input) {
	m.input = Input{
		Forward: mgl64.Clamp(in.Forward, -1, 1),
		Right:   mgl64.Clamp(in.Right, -1, 1),
	}
}

// Look turns the camera by dx, dy look units (mouse pixels or key presses).
// Positive dx turns right, positive dy looks up.
func (m *Manual) Look(dx, dy float64) {
	step := m.cfg.LookSpeed * math.Pi / 180
	m.yaw -= dx * step
	m.pitch = mgl64.Clamp(m.pitch+dy*step, -maxPitch, maxPitch)
}

func (m *Manual) Update(dt float64) {
	if dt <= 0 || (m.input.Forward == 0 && m.input.Right == 0) {
		return
	}
	heading := mgl64.QuatRotate(m.yaw, mgl64.Vec3{0, 1, 0})
	forward := heading.Rotate(mgl64.Vec3{0, 0, -1})
	right := heading.Rotate(mgl64.Vec3{1, 0, 0})
	move := forward.Mul(m.input.Forward).Add(right.Mul(m.input.Right))
	if l := move.Len(); l > 1 {
		move = move.Mul(1 / l)
	}
	m.position = m.position.Add(move.Mul(m.cfg.MoveSpeed * dt))
	m.pin()
}

func (m *Manual) pin() {
	if !math.IsNaN(m.cfg.PinHeight) {
		m.position[1] = m.cfg.PinHeight
	}
}

func (m *Manual) Pose() dynamo.Pose {
	return dynamo.Pose{Position: m.position, Orientation: yawPitch(m.yaw, m.pitch)}
}

// Reset returns to the configured start.
func (m *Manual) Reset() {
	m.position = m.cfg.Position
	m.yaw, m.pitch = 0, 0
	m.input = Input{}
	m.pin()
}
