package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstant(t *testing.T) {
	p := Constant(0.4)
	for _, d := range []float32{0, 0.3, 1} {
		assert.InDelta(t, 0.4, p.Evaluate(d), 1e-6)
	}
}

func TestLinearEndpoints(t *testing.T) {
	p := Linear(1, 0.2)
	assert.InDelta(t, 1.0, p.Evaluate(0), 1e-6)
	assert.InDelta(t, 0.6, p.Evaluate(0.5), 1e-6)
	assert.InDelta(t, 0.2, p.Evaluate(1), 1e-6)
	assert.InDelta(t, 0.2, p.Evaluate(3), 1e-6)
}

func TestCurvedIsMonotoneAndBent(t *testing.T) {
	up := Curved(0, 1, 0.8)
	down := Curved(0, 1, -0.8)

	assert.InDelta(t, 0.0, up.Evaluate(0), 1e-5)
	assert.InDelta(t, 1.0, up.Evaluate(1), 1e-5)
	assert.Greater(t, up.Evaluate(0.5), float32(0.5))
	assert.Less(t, down.Evaluate(0.5), float32(0.5))

	prev := float32(-1)
	for i := 0; i <= 20; i++ {
		v := up.Evaluate(float32(i) / 20)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}
