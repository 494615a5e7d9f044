// Package telemetry holds the JSON messages the daemon exchanges over MQTT.
package telemetry

import (
	"fmt"
	"math"
	"time"

	"cloudpico-baro/internal/baro"
)

// Instance is the per-sensor part of a state message.
type Instance struct {
	Index       int      `json:"index"`
	Backend     string   `json:"backend,omitempty"`
	Kind        string   `json:"kind"`
	Pressure    float64  `json:"pressure_pa"`
	Temperature float64  `json:"temperature_c"`
	Altitude    *float64 `json:"altitude_m,omitempty"`
	ClimbRate   float64  `json:"climb_rate_ms"`
	Healthy     bool     `json:"healthy"`
	Calibration string   `json:"calibration"`
	HIL         bool     `json:"hil,omitempty"`
}

// State is published periodically on <prefix>/<vehicle>/baro/state.
type State struct {
	VehicleID  string     `json:"vehicle_id"`
	Timestamp  time.Time  `json:"timestamp"`
	Primary    int        `json:"primary"`
	Altitude   *float64   `json:"altitude_m,omitempty"`
	ClimbRate  float64    `json:"climb_rate_ms"`
	EAS2TAS    float64    `json:"eas2tas"`
	AllHealthy bool       `json:"all_healthy"`
	Instances  []Instance `json:"instances"`
}

// Health is the retained message on <prefix>/<vehicle>/baro/health.
type Health struct {
	VehicleID string        `json:"vehicle_id"`
	Timestamp time.Time     `json:"timestamp"`
	Healthy   bool          `json:"healthy"`
	Primary   int           `json:"primary"`
	Instances []baro.Health `json:"instances"`
}

// ExternalTemperature is received on <prefix>/<vehicle>/baro/external_temperature.
type ExternalTemperature struct {
	Temperature *float64  `json:"temperature_c"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// Validate checks the message is usable as an ambient temperature.
func (e ExternalTemperature) Validate() error {
	if e.Temperature == nil {
		return fmt.Errorf("temperature_c is required")
	}
	t := *e.Temperature
	if math.IsNaN(t) || t < -60 || t > 100 {
		return fmt.Errorf("temperature_c out of range: %v (must be -60..100)", t)
	}
	return nil
}

// StateFromSnapshot builds a state message. Altitudes are omitted for
// instances whose altitude is not valid.
func StateFromSnapshot(vehicleID string, snap baro.Snapshot, at time.Time) State {
	st := State{
		VehicleID:  vehicleID,
		Timestamp:  at.UTC(),
		Primary:    snap.Primary,
		EAS2TAS:    snap.EAS2TAS,
		AllHealthy: snap.AllHealthy,
		Instances:  make([]Instance, 0, snap.NumInstances),
	}
	for _, in := range snap.Active() {
		ti := Instance{
			Index:       in.Index,
			Backend:     in.Backend,
			Kind:        in.Kind.String(),
			Pressure:    in.Pressure,
			Temperature: in.Temperature,
			ClimbRate:   in.ClimbRate,
			Healthy:     in.Health.OK(),
			Calibration: in.State.String(),
			HIL:         in.HIL,
		}
		if in.Health.AltitudeValid {
			ti.Altitude = ptr(in.Altitude)
		}
		st.Instances = append(st.Instances, ti)
	}
	if p, ok := snap.PrimaryInstance(); ok {
		st.ClimbRate = p.ClimbRate
		if p.Health.AltitudeValid {
			st.Altitude = ptr(p.Altitude)
		}
	}
	return st
}

// HealthFromSnapshot builds a health message.
func HealthFromSnapshot(vehicleID string, snap baro.Snapshot, at time.Time) Health {
	h := Health{
		VehicleID: vehicleID,
		Timestamp: at.UTC(),
		Healthy:   snap.AllHealthy,
		Primary:   snap.Primary,
		Instances: make([]baro.Health, 0, snap.NumInstances),
	}
	for _, in := range snap.Active() {
		h.Instances = append(h.Instances, in.Health)
	}
	return h
}

func ptr(v float64) *float64 { return &v }
