// Package spatial computes per-client gain values from the distance
// between a client and a movable listening source on a bounded 2D grid.
package spatial

import (
	"fmt"
	"math"
)

const (
	MinGain = 0.15
	MaxGain = 1.0

	// RampTimeSeconds is the interpolation time a client applies when
	// moving to a new gain. Sub-second so position changes feel
	// immediate without an audible step.
	RampTimeSeconds = 0.25
)

// expFalloff controls how fast the exponential curve decays. ln(100) puts
// the far corner at ~1% of the gain range above MinGain.
const expFalloff = 4.6052

type Curve string

const (
	CurveExponential Curve = "exponential"
	CurveLinear      Curve = "linear"
	CurveQuadratic   Curve = "quadratic"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Gain struct {
	Gain            float64 `json:"gain"`
	RampTimeSeconds float64 `json:"ramp_time_seconds"`
}

// Engine maps distances on a gridSize x gridSize grid to gains in
// [MinGain, MaxGain]. All three curves are monotonically non-increasing in
// distance.
type Engine struct {
	gridSize    float64
	maxDistance float64
	curve       Curve
}

func NewEngine(gridSize float64, curve Curve) (*Engine, error) {
	if gridSize <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %f", gridSize)
	}

	switch curve {
	case CurveExponential, CurveLinear, CurveQuadratic:
	default:
		return nil, fmt.Errorf("unknown gain curve %q", curve)
	}

	return &Engine{
		gridSize:    gridSize,
		maxDistance: gridSize * math.Sqrt2,
		curve:       curve,
	}, nil
}

func (e *Engine) GridSize() float64 {
	return e.gridSize
}

// ClampPosition bounds a position to the grid.
func (e *Engine) ClampPosition(p Position) Position {
	return Position{
		X: clamp(p.X, 0, e.gridSize),
		Y: clamp(p.Y, 0, e.gridSize),
	}
}

// GainAt returns the gain for a client at the given position relative to
// the listening source.
func (e *Engine) GainAt(client, source Position) Gain {
	d := distance(client, source) / e.maxDistance

	var g float64
	switch e.curve {
	case CurveLinear:
		g = MaxGain - (MaxGain-MinGain)*d
	case CurveQuadratic:
		g = MaxGain - (MaxGain-MinGain)*d*d
	default:
		g = MinGain + (MaxGain-MinGain)*math.Exp(-expFalloff*d)
	}

	return Gain{
		Gain:            clamp(g, MinGain, MaxGain),
		RampTimeSeconds: RampTimeSeconds,
	}
}

// ComputeGains returns a gain per client for the current listening source.
func (e *Engine) ComputeGains(clients map[string]Position, source Position) map[string]Gain {
	gains := make(map[string]Gain, len(clients))
	for id, pos := range clients {
		gains[id] = e.GainAt(pos, source)
	}

	return gains
}

func distance(a, b Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
