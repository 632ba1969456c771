package sim

import (
	"fmt"

	"github.com/san-kum/broomsim/internal/dynamo"
)

// FrameSample is what metrics and observers see after every frame.
type FrameSample struct {
	Frame          int          `json:"frame"`
	Time           float64      `json:"time"`
	Dt             float64      `json:"dt"`
	SubSteps       int          `json:"substeps"`
	Stats          dynamo.Stats `json:"stats"`
	Spawned        int          `json:"spawned"`
	Evicted        int          `json:"evicted"`
	Contacts       int          `json:"contacts"`
	MaxPenetration float64      `json:"max_penetration"`
	KineticEnergy  float64      `json:"kinetic_energy"`
}

type Metric interface {
	Name() string
	Observe(s FrameSample)
	Value() float64
	Reset()
}

type Observer interface {
	OnFrame(s FrameSample)
}

// Clock supplies the elapsed time for each frame.
type Clock interface {
	Tick() float64
}

type Stage int

const (
	StageDrive Stage = iota
	StageStep
	StageSync
	StageEvict
	StageSpawn
)

func (s Stage) String() string {
	switch s {
	case StageDrive:
		return "drive"
	case StageStep:
		return "step"
	case StageSync:
		return "sync"
	case StageEvict:
		return "evict"
	case StageSpawn:
		return "spawn"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError records a failure in one stage of a frame.
type StageError struct {
	Stage Stage
	Frame int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("frame %d %s: %v", e.Frame, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type FrameReport struct {
	FrameSample
	Errors []error
}

type Result struct {
	Frames   int                `json:"frames"`
	Time     float64            `json:"time"`
	Stats    dynamo.Stats       `json:"stats"`
	Metrics  map[string]float64 `json:"metrics"`
	Samples  []FrameSample      `json:"-"`
	Errors   []error            `json:"-"`
	Canceled bool               `json:"canceled"`
}

type RunOptions struct {
	Frames int  // 0 runs until the context is done
	Record bool // keep every FrameSample in the result
}
