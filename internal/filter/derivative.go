// Package filter holds small fixed-size signal filters used by the
// barometer frontend.
package filter

import (
	"math"
	"time"
)

// DerivativeSize is the window length of Derivative.
const DerivativeSize = 7

// Derivative estimates the slope of a sampled signal with a 7 point
// smooth noise-robust differentiator (Holoborodko). It tolerates irregular
// sample spacing by using the actual timestamps of each pair.
//
// The zero value is ready to use. It allocates nothing after construction.
type Derivative struct {
	samples    [DerivativeSize]float64
	timestamps [DerivativeSize]time.Duration
	next       int
	count      int

	newData   bool
	lastSlope float64
}

// Update adds a sample taken at ts. A sample carrying the same timestamp as
// the previous one is ignored.
func (d *Derivative) Update(sample float64, ts time.Duration) {
	if d.count > 0 {
		prev := (d.next + DerivativeSize - 1) % DerivativeSize
		if d.timestamps[prev] == ts {
			return
		}
	}

	d.samples[d.next] = sample
	d.timestamps[d.next] = ts
	d.next = (d.next + 1) % DerivativeSize
	if d.count < DerivativeSize {
		d.count++
	}
	d.newData = true
}

// Slope returns the derivative in units per second, or 0 until the window
// has been filled.
func (d *Derivative) Slope() float64 {
	if !d.newData {
		return d.lastSlope
	}
	if d.count < DerivativeSize {
		return 0
	}

	// d.next is the oldest sample once the buffer is full, so the centre
	// of the window is three slots further on.
	centre := d.next + DerivativeSize/2
	f := func(i int) float64 { return d.samples[(centre+i)%DerivativeSize] }
	x := func(i int) float64 { return d.timestamps[(centre+i)%DerivativeSize].Seconds() }

	result := 2*5*(f(1)-f(-1))/(x(1)-x(-1)) +
		4*4*(f(2)-f(-2))/(x(2)-x(-2)) +
		6*1*(f(3)-f(-3))/(x(3)-x(-3))
	result /= 32

	if math.IsNaN(result) || math.IsInf(result, 0) {
		result = 0
	}

	d.newData = false
	d.lastSlope = result
	return result
}

// Reset clears the history.
func (d *Derivative) Reset() {
	*d = Derivative{}
}
