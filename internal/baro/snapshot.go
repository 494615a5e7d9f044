package baro

import "time"

// InstanceSnapshot is a copy of one instance's outputs.
type InstanceSnapshot struct {
	Index             int              `json:"index"`
	Backend           string           `json:"backend"`
	Kind              Kind             `json:"kind"`
	Pressure          float64          `json:"pressure_pa"`
	Temperature       float64          `json:"temperature_c"`
	Altitude          float64          `json:"altitude_m"`
	ClimbRate         float64          `json:"climb_rate_ms"`
	GroundPressure    float64          `json:"ground_pressure_pa"`
	GroundTemperature float64          `json:"ground_temperature_c"`
	LastUpdate        time.Duration    `json:"last_update_ns"`
	Health            Health           `json:"health"`
	State             CalibrationState `json:"calibration"`
	HIL               bool             `json:"hil"`
}

// Snapshot is a consistent copy of the frontend outputs, safe to hand to
// other goroutines.
type Snapshot struct {
	Taken           time.Duration
	Primary         int
	NumInstances    int
	Instances       [MaxInstances]InstanceSnapshot
	AllHealthy      bool
	EAS2TAS         float64
	AirDensityRatio float64
	DriftOffset     float64
}

// Active returns the snapshots of the claimed instances.
func (s *Snapshot) Active() []InstanceSnapshot {
	return s.Instances[:s.NumInstances]
}

// PrimaryInstance returns the snapshot of the primary instance.
func (s *Snapshot) PrimaryInstance() (InstanceSnapshot, bool) {
	if s.Primary < 0 || s.Primary >= s.NumInstances {
		return InstanceSnapshot{}, false
	}
	return s.Instances[s.Primary], true
}

// Snapshot copies the current outputs. Call it from the control goroutine.
func (f *Frontend) Snapshot() Snapshot {
	s := Snapshot{
		Taken:           f.clock.Now(),
		Primary:         f.Primary(),
		NumInstances:    f.numInstances,
		AllHealthy:      f.AllHealthy(),
		EAS2TAS:         f.EAS2TAS(),
		AirDensityRatio: f.AirDensityRatio(),
		DriftOffset:     f.altOffsetLive,
	}
	for i := 0; i < f.numInstances; i++ {
		inst := &f.instances[i]
		s.Instances[i] = InstanceSnapshot{
			Index:             i,
			Backend:           f.BackendName(i),
			Kind:              inst.kind,
			Pressure:          inst.pressure,
			Temperature:       inst.temperature,
			Altitude:          inst.altitude,
			ClimbRate:         f.ClimbRateOf(i),
			GroundPressure:    inst.groundPressure,
			GroundTemperature: inst.groundTemperature,
			LastUpdate:        inst.lastUpdate,
			Health:            f.HealthOf(i),
			State:             inst.state,
			HIL:               inst.hil.active,
		}
	}
	return s
}
