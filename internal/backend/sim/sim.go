// Package sim provides a barometer backend that synthesises ISA pressure
// for a vehicle climbing at a constant rate. It drives SITL runs and tests.
package sim

import (
	"fmt"
	"log/slog"
	"time"

	"cloudpico-baro/internal/atmosphere"
	"cloudpico-baro/internal/baro"
)

type Options struct {
	// Instances is the number of simulated sensors, each claiming a slot.
	Instances int
	// GroundPressure in Pa at the start altitude.
	GroundPressure float64
	// GroundTemperature in °C.
	GroundTemperature float64
	// ClimbRate in m/s.
	ClimbRate float64
	// PressureSpread adds i*PressureSpread Pa to instance i so that the
	// instances are distinguishable.
	PressureSpread float64
	Logger         *slog.Logger
}

// Backend is a simulated barometer.
type Backend struct {
	slots      []*baro.Slot
	clock      baro.Clock
	start      time.Duration
	ground     float64
	groundTemp float64
	climbRate  float64
	spread     float64
}

var _ baro.Backend = (*Backend)(nil)

// New claims opts.Instances slots from c.
func New(c baro.Claimer, opts Options) (*Backend, error) {
	if opts.Instances <= 0 {
		opts.Instances = 1
	}
	if opts.GroundPressure <= 0 {
		opts.GroundPressure = atmosphere.SeaLevelPressure
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	b := &Backend{
		clock:      c.Clock(),
		ground:     opts.GroundPressure,
		groundTemp: opts.GroundTemperature,
		climbRate:  opts.ClimbRate,
		spread:     opts.PressureSpread,
	}
	for i := 0; i < opts.Instances; i++ {
		slot, err := c.ClaimInstance()
		if err != nil {
			return nil, fmt.Errorf("sim instance %d: %w", i, err)
		}
		b.slots = append(b.slots, slot)
	}
	b.start = b.clock.Now()

	opts.Logger.Info("simulated barometer ready",
		"instances", len(b.slots),
		"ground_pressure", b.ground,
		"climb_rate", b.climbRate,
	)
	return b, nil
}

func (b *Backend) Name() string { return "sim" }

// Slots returns the claimed slots, for RegisterBackend.
func (b *Backend) Slots() []*baro.Slot { return b.slots }

// Altitude returns the simulated height above the start point.
func (b *Backend) Altitude() float64 {
	return b.climbRate * (b.clock.Now() - b.start).Seconds()
}

func (b *Backend) Accumulate() {
	alt := b.Altitude()
	p := atmosphere.PressureAtDifference(b.ground, alt, b.groundTemp)
	t := b.groundTemp - 0.0065*alt
	for i, s := range b.slots {
		s.Publish(p+float64(i)*b.spread, t)
	}
}
