// Package baro is the barometer frontend: it owns a fixed set of sensor
// instances fed by backend drivers, calibrates them against a ground
// reference and derives altitude, climb rate and airspeed scale factors for
// the primary instance.
//
// Apart from Accumulate and Slot.Publish, which may run on a timer
// goroutine, every Frontend method must be called from a single control
// goroutine.
package baro

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxInstances is the number of sensor instances the frontend can hold.
	MaxInstances = 3
	// MaxBackends is the number of backend drivers. One backend may provide
	// several instances.
	MaxBackends = 3
)

const (
	defaultStaleAfter          = 500 * time.Millisecond
	defaultCalibrationSettle   = time.Second
	defaultCalibrationInterval = 100 * time.Millisecond
	defaultCalibrationSamples  = 5
	defaultCalibrationTimeout  = 5 * time.Second

	externalTemperatureMaxAge = 10 * time.Second
	maxCalibrationTemperature = 25.0 // °C, on-board sensors read high

	eas2tasAltitudeEpsilon = 25.0 // m

	waterPascalPerMetre = 9800.0
)

var (
	// ErrTooManyBackends is returned when the backend registry is full.
	ErrTooManyBackends = errors.New("baro: too many backends")
	// ErrTooManyInstances is returned when every instance slot is claimed.
	ErrTooManyInstances = errors.New("baro: too many sensor instances")
	// ErrForeignSlot is returned when a backend registers a slot that was
	// not claimed from this frontend.
	ErrForeignSlot = errors.New("baro: slot not claimed from this frontend")
	// ErrNoInstance is returned for an instance index outside the claimed range.
	ErrNoInstance = errors.New("baro: no such instance")
	// ErrInvalidSample is returned for an injected reading that is not finite.
	ErrInvalidSample = errors.New("baro: invalid injected sample")
)

// Kind selects the pressure model of an instance.
type Kind uint8

const (
	KindAir Kind = iota
	KindLiquid
)

func (k Kind) String() string {
	switch k {
	case KindAir:
		return "air"
	case KindLiquid:
		return "liquid"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "air":
		return KindAir, nil
	case "liquid":
		return KindLiquid, nil
	default:
		return KindAir, fmt.Errorf("baro: unknown sensor kind %q", s)
	}
}

// CalibrationState is the per-instance calibration state machine.
type CalibrationState uint8

const (
	Uncalibrated CalibrationState = iota
	Sampling
	Calibrated
)

func (s CalibrationState) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case Sampling:
		return "sampling"
	case Calibrated:
		return "calibrated"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s CalibrationState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Health is the tri-flag health of an instance. AltitudeValid and
// Calibrated are never true unless SensorHealthy is.
type Health struct {
	SensorHealthy bool `json:"sensor_healthy"`
	AltitudeValid bool `json:"altitude_valid"`
	Calibrated    bool `json:"calibrated"`
}

// OK reports whether all three flags are set.
func (h Health) OK() bool {
	return h.SensorHealthy && h.AltitudeValid && h.Calibrated
}
