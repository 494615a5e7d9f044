package filter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivative_ZeroUntilFull(t *testing.T) {
	var d Derivative
	for i := 0; i < DerivativeSize-1; i++ {
		d.Update(float64(i)*3, time.Duration(i)*100*time.Millisecond)
		assert.Equal(t, 0.0, d.Slope(), "after %d samples", i+1)
	}
}

func TestDerivative_LinearRamp(t *testing.T) {
	var d Derivative
	const rate = 2.0 // m/s
	dt := 50 * time.Millisecond

	for i := 0; i < 40; i++ {
		ts := time.Duration(i) * dt
		d.Update(rate*ts.Seconds(), ts)
	}
	assert.InDelta(t, rate, d.Slope(), rate*0.05)
}

func TestDerivative_IrregularSpacing(t *testing.T) {
	var d Derivative
	const rate = -1.5
	ts := time.Duration(0)
	steps := []time.Duration{90, 110, 100, 95, 105, 120, 80, 100, 100}
	for _, s := range steps {
		ts += s * time.Millisecond
		d.Update(rate*ts.Seconds(), ts)
	}
	assert.InDelta(t, rate, d.Slope(), 1e-9)
}

func TestDerivative_NoiseIsSmoothed(t *testing.T) {
	var d Derivative
	dt := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		ts := time.Duration(i) * dt
		noise := 0.05
		if i%2 == 0 {
			noise = -noise
		}
		d.Update(ts.Seconds()+noise, ts)
	}
	// naive two-point difference would swing by ±1 m/s here
	assert.InDelta(t, 1.0, d.Slope(), 0.35)
}

func TestDerivative_DuplicateTimestampIgnored(t *testing.T) {
	var d Derivative
	for i := 0; i < DerivativeSize; i++ {
		d.Update(float64(i), time.Duration(i)*time.Second)
	}
	before := d.Slope()
	require.InDelta(t, 1.0, before, 1e-9)

	d.Update(1000, time.Duration(DerivativeSize-1)*time.Second)
	assert.Equal(t, before, d.Slope())
}

func TestDerivative_Reset(t *testing.T) {
	var d Derivative
	for i := 0; i < 10; i++ {
		d.Update(float64(i), time.Duration(i)*time.Second)
	}
	require.NotZero(t, d.Slope())

	d.Reset()
	assert.Equal(t, 0.0, d.Slope())
	d.Update(5, time.Second)
	assert.Equal(t, 0.0, d.Slope())
}

func TestDerivative_NonFiniteBecomesZero(t *testing.T) {
	var d Derivative
	for i := 0; i < DerivativeSize; i++ {
		d.Update(math.Inf(1), time.Duration(i)*time.Second)
	}
	assert.Equal(t, 0.0, d.Slope())
}
