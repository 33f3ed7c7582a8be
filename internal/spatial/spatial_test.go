package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gridSize = 100.0

func allCurves(t *testing.T) []*Engine {
	t.Helper()

	engines := make([]*Engine, 0, 3)
	for _, curve := range []Curve{CurveExponential, CurveLinear, CurveQuadratic} {
		e, err := NewEngine(gridSize, curve)
		require.NoError(t, err)
		engines = append(engines, e)
	}

	return engines
}

func TestGainBoundsAndEndpoints(t *testing.T) {
	source := Position{X: 0, Y: 0}
	farCorner := Position{X: gridSize, Y: gridSize}

	for _, e := range allCurves(t) {
		colocated := e.GainAt(source, source)
		assert.InDelta(t, MaxGain, colocated.Gain, 0.01, "curve %s colocated", e.curve)

		far := e.GainAt(farCorner, source)
		assert.InDelta(t, MinGain, far.Gain, 0.01, "curve %s far corner", e.curve)

		assert.Equal(t, RampTimeSeconds, colocated.RampTimeSeconds)
	}
}

func TestGainMonotonicallyNonIncreasing(t *testing.T) {
	source := Position{X: 0, Y: 0}

	for _, e := range allCurves(t) {
		prev := MaxGain + 1
		for x := 0.0; x <= gridSize; x += 5 {
			g := e.GainAt(Position{X: x, Y: x}, source).Gain
			assert.LessOrEqual(t, g, prev, "curve %s at x=%f", e.curve, x)
			assert.GreaterOrEqual(t, g, MinGain)
			assert.LessOrEqual(t, g, MaxGain)
			prev = g
		}
	}
}

func TestComputeGainsCoversAllClients(t *testing.T) {
	e, err := NewEngine(gridSize, CurveExponential)
	require.NoError(t, err)

	clients := map[string]Position{
		"near": {X: 49, Y: 51},
		"far":  {X: 100, Y: 0},
	}
	gains := e.ComputeGains(clients, Position{X: 50, Y: 50})

	require.Len(t, gains, 2)
	assert.Greater(t, gains["near"].Gain, gains["far"].Gain)
}

func TestClampPosition(t *testing.T) {
	e, err := NewEngine(gridSize, CurveLinear)
	require.NoError(t, err)

	assert.Equal(t, Position{X: 0, Y: 100}, e.ClampPosition(Position{X: -5, Y: 250}))
	assert.Equal(t, Position{X: 42, Y: 7}, e.ClampPosition(Position{X: 42, Y: 7}))
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	_, err := NewEngine(0, CurveLinear)
	assert.Error(t, err)

	_, err = NewEngine(gridSize, Curve("cubic"))
	assert.Error(t, err)
}
