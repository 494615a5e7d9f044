package baro

import "time"

const (
	minAirPressure    = 1_000.0   // Pa
	maxAirPressure    = 200_000.0 // Pa
	minLiquidPressure = 1_000.0
	maxLiquidPressure = 10_000_000.0
	minCalTemperature = -60.0 // °C
	maxCalTemperature = 100.0
)

type calibrationRun struct {
	count          int
	sumPressure    float64
	sumTemperature float64
}

func (r *calibrationRun) reset() { *r = calibrationRun{} }

func (r *calibrationRun) add(p, t float64) {
	r.count++
	r.sumPressure += p
	r.sumTemperature += t
}

func (r *calibrationRun) mean() (p, t float64) {
	if r.count == 0 {
		return 0, 0
	}
	n := float64(r.count)
	return r.sumPressure / n, r.sumTemperature / n
}

func plausible(k Kind, p, t float64) bool {
	if t < minCalTemperature || t > maxCalTemperature {
		return false
	}
	if k == KindLiquid {
		return p >= minLiquidPressure && p <= maxLiquidPressure
	}
	return p >= minAirPressure && p <= maxAirPressure
}

// Calibrate captures a ground reference for every sensor-healthy instance.
// It resets the drift offset, waits for the sensors to settle and then
// averages consecutive plausible samples. Instances that never collect
// enough of them before the timeout stay uncalibrated.
//
// Calibrate blocks the calling goroutine for up to the calibration timeout.
// Backends keep publishing meanwhile; only the clock drives it.
func (f *Frontend) Calibrate() {
	start := f.clock.Now()
	f.params.AltOffset = 0
	f.altOffsetLive = 0
	f.Update()

	var runs [MaxInstances]calibrationRun
	pending := 0
	for i := 0; i < f.numInstances; i++ {
		inst := &f.instances[i]
		if inst.hil.active {
			continue
		}
		if !inst.sensorHealthy {
			inst.state = Uncalibrated
			f.logger.Warn("barometer unhealthy, not calibrating", "instance", i)
			continue
		}
		inst.state = Sampling
		pending++
	}
	if pending == 0 {
		f.logger.Warn("no barometer ready for calibration")
		return
	}

	f.logger.Info("calibrating barometers", "instances", pending)
	deadline := start + f.calTimeout
	for f.clock.Now()-start < f.calSettle {
		f.clock.Sleep(f.calInterval)
		f.Update()
	}

	for pending > 0 && f.clock.Now() < deadline {
		f.clock.Sleep(f.calInterval)
		f.Update()

		for i := 0; i < f.numInstances; i++ {
			inst := &f.instances[i]
			if inst.state != Sampling {
				continue
			}
			run := &runs[i]
			if !inst.sensorHealthy || !plausible(inst.kind, inst.pressure, inst.temperature) {
				run.reset()
				continue
			}
			if !inst.fresh {
				continue
			}
			run.add(inst.pressure, inst.temperature)
			if run.count >= f.calSamples {
				f.finishCalibration(i, run, f.clock.Now()-start)
				pending--
			}
		}
	}

	for i := 0; i < f.numInstances; i++ {
		inst := &f.instances[i]
		if inst.state != Sampling {
			continue
		}
		inst.state = Uncalibrated
		f.logger.Warn("barometer calibration timed out", "instance", i, "samples", runs[i].count)
		f.record(CalibrationRecord{
			Instance: i,
			Kind:     inst.kind,
			Samples:  runs[i].count,
			Duration: f.clock.Now() - start,
		})
	}

	for i := 0; i < f.numInstances; i++ {
		f.instances[i].climb.Reset()
	}
	f.eas2tas = 0
	f.Update()
	f.save()
}

func (f *Frontend) finishCalibration(i int, run *calibrationRun, took time.Duration) {
	inst := &f.instances[i]
	p, t := run.mean()

	switch inst.kind {
	case KindLiquid:
		if f.params.BasePressure == 0 || f.params.ResetBasePressure {
			f.params.BasePressure = p
			f.params.ResetBasePressure = false
		}
		inst.groundPressure = f.params.BasePressure
	default:
		inst.groundPressure = p
	}
	inst.groundTemperature = t
	inst.state = Calibrated
	f.params.Ground[i] = GroundReference{Pressure: inst.groundPressure, Temperature: t}

	f.logger.Info("barometer calibrated",
		"instance", i,
		"kind", inst.kind,
		"ground_pressure", inst.groundPressure,
		"ground_temperature", t,
	)
	f.record(CalibrationRecord{
		Instance:    i,
		Kind:        inst.kind,
		Succeeded:   true,
		Samples:     run.count,
		Pressure:    inst.groundPressure,
		Temperature: t,
		Duration:    took,
	})
}

func (f *Frontend) record(rec CalibrationRecord) {
	r, ok := f.store.(CalibrationRecorder)
	if !ok {
		return
	}
	if err := r.RecordCalibration(rec); err != nil {
		f.logger.Error("failed to record calibration", "instance", rec.Instance, "error", err)
	}
}

// UpdateCalibration re-captures the ground reference of every healthy air
// instance from its current reading, for use while stationary before
// takeoff. It is a single-sample capture and is not persisted.
func (f *Frontend) UpdateCalibration() {
	for i := 0; i < f.numInstances; i++ {
		inst := &f.instances[i]
		if inst.kind != KindAir || inst.hil.active || !f.Healthy(i) {
			continue
		}
		inst.groundPressure = inst.pressure
		inst.groundTemperature = f.CalibrationTemperatureOf(i)
		f.params.Ground[i] = GroundReference{Pressure: inst.groundPressure, Temperature: inst.groundTemperature}
		inst.climb.Reset()
	}
	f.eas2tas = 0
}
