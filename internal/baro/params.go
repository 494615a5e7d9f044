package baro

import "time"

// GroundReference is the pressure and temperature captured at calibration.
type GroundReference struct {
	Pressure    float64 `json:"pressure"`    // Pa
	Temperature float64 `json:"temperature"` // °C
}

// Params is the persisted configuration of the frontend. It is loaded once
// at boot and handed to New; the frontend keeps it current and writes it
// back through a ParamStore when it changes.
type Params struct {
	Primary           int
	AltOffset         float64 // m, drift correction applied to every instance
	SpecificGravity   float64 // of the fluid around liquid sensors
	BasePressure      float64 // Pa, persistent ground reference of liquid sensors
	ResetBasePressure bool    // re-capture BasePressure at the next calibration
	Ground            [MaxInstances]GroundReference
}

// DefaultParams returns the parameters of a fresh install.
func DefaultParams() Params {
	return Params{SpecificGravity: 1.0}
}

// ParamStore persists Params.
type ParamStore interface {
	Save(p Params) error
}

// CalibrationRecord describes the outcome of calibrating one instance.
type CalibrationRecord struct {
	Instance    int
	Kind        Kind
	Succeeded   bool
	Samples     int
	Pressure    float64
	Temperature float64
	Duration    time.Duration
}

// CalibrationRecorder is implemented by stores that keep a calibration
// history.
type CalibrationRecorder interface {
	RecordCalibration(rec CalibrationRecord) error
}
