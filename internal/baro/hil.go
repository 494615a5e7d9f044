package baro

import (
	"math"
	"time"

	"cloudpico-baro/internal/atmosphere"
)

// HILSample is a reading injected by a simulator in place of sensor data.
// Altitude is relative to the ground reference.
type HILSample struct {
	Pressure    float64 // Pa
	Temperature float64 // °C
	Altitude    float64 // m
	ClimbRate   float64 // m/s
	Time        time.Duration
}

func (s HILSample) validate() error {
	for _, v := range []float64{s.Pressure, s.Temperature, s.Altitude, s.ClimbRate} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidSample
		}
	}
	if s.Pressure <= 0 {
		return ErrInvalidSample
	}
	return nil
}

// SetHIL makes instance i report s instead of its sensor until ClearHIL.
// The instance stays sensor healthy while s.Time is fresh. Non-finite
// values and a non-positive pressure are rejected with ErrInvalidSample.
func (f *Frontend) SetHIL(i int, s HILSample) error {
	inst := f.inst(i)
	if inst == nil {
		return ErrNoInstance
	}
	if err := s.validate(); err != nil {
		return err
	}
	inst.hil = hilState{active: true, sample: s, ownedClimb: true}
	f.applyHIL(inst, f.clock.Now())
	return nil
}

// SetHILAltitude injects an ISA reading for the given altitude above mean
// sea level into the primary instance. The climb rate is derived from the
// injected altitudes.
func (f *Frontend) SetHILAltitude(altMSL float64) error {
	i := f.Primary()
	inst := f.inst(i)
	if inst == nil {
		return ErrNoInstance
	}
	if math.IsNaN(altMSL) || math.IsInf(altMSL, 0) {
		return ErrInvalidSample
	}

	p, t := atmosphere.Conditions(altMSL)
	alt := altMSL
	if inst.groundPressure > 0 {
		alt = atmosphere.AltitudeDifference(inst.groundPressure, p, inst.groundTemperature)
	}
	now := f.clock.Now()
	inst.hil = hilState{
		active: true,
		sample: HILSample{Pressure: p, Temperature: t, Altitude: alt, Time: now},
	}
	inst.climb.Update(alt, now)
	f.applyHIL(inst, now)
	return nil
}

// ClearHIL returns instance i to its sensor.
func (f *Frontend) ClearHIL(i int) error {
	inst := f.inst(i)
	if inst == nil {
		return ErrNoInstance
	}
	inst.hil = hilState{}
	inst.climb.Reset()
	inst.sensorHealthy = false
	inst.altOK = false
	return nil
}

// HILActive reports whether instance i is driven by injected data.
func (f *Frontend) HILActive(i int) bool {
	inst := f.inst(i)
	return inst != nil && inst.hil.active
}

func (f *Frontend) applyHIL(inst *instance, now time.Duration) {
	s := inst.hil.sample
	inst.pressure = s.Pressure
	inst.temperature = s.Temperature
	inst.altitude = s.Altitude
	inst.lastUpdate = s.Time
	inst.fresh = false
	inst.sensorHealthy = now-s.Time < f.staleAfter
	inst.altOK = !math.IsNaN(s.Altitude) && !math.IsInf(s.Altitude, 0)
}
