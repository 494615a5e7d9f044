package baro

import (
	"math"
	"time"

	"cloudpico-baro/internal/atmosphere"
)

const driftSlew = 0.05

// Update consumes staged samples and recomputes health, altitude and climb
// rate for every instance. Call it from the control loop.
func (f *Frontend) Update() {
	now := f.clock.Now()

	for i := 0; i < f.numInstances; i++ {
		inst := &f.instances[i]
		if inst.hil.active {
			f.applyHIL(inst, now)
			continue
		}

		f.consume(inst, now)
		inst.sensorHealthy = now-inst.lastUpdate < f.staleAfter && inst.pressure != 0

		if !inst.sensorHealthy || inst.state != Calibrated {
			inst.altOK = false
			continue
		}

		alt := f.relativeAltitude(inst)
		inst.altOK = !math.IsNaN(alt) && !math.IsInf(alt, 0)
		if !inst.altOK {
			continue
		}
		inst.altitude = alt + f.altOffsetLive
		if inst.fresh {
			inst.climb.Update(inst.altitude, inst.lastUpdate)
		}
	}

	f.altOffsetLive = (1-driftSlew)*f.altOffsetLive + driftSlew*f.params.AltOffset
}

// consume copies a new sample out of the instance slot. Samples older than
// the staleness window are dropped.
func (f *Frontend) consume(inst *instance, now time.Duration) {
	inst.fresh = false
	smp, seq, ok := inst.slot.load()
	if !ok || seq == inst.consumedSeq {
		return
	}
	inst.consumedSeq = seq
	if now-smp.Time >= f.staleAfter {
		return
	}
	inst.pressure = smp.Pressure * inst.precisionMultiplier
	inst.temperature = smp.Temperature
	inst.lastUpdate = smp.Time
	inst.fresh = true
}

func (f *Frontend) relativeAltitude(inst *instance) float64 {
	switch inst.kind {
	case KindLiquid:
		return (inst.groundPressure - inst.pressure) / (waterPascalPerMetre * f.params.SpecificGravity)
	default:
		temp := inst.groundTemperature
		if t, ok := f.externalTemperature(); ok {
			temp = t
		}
		return atmosphere.AltitudeDifference(inst.groundPressure, inst.pressure, temp)
	}
}
