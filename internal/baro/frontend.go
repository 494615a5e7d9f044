package baro

import (
	"log/slog"
	"math"
	"time"

	"cloudpico-baro/internal/atmosphere"
	"cloudpico-baro/internal/filter"
)

// Options tunes a Frontend. Zero fields take defaults.
type Options struct {
	Clock  Clock
	Logger *slog.Logger
	Store  ParamStore

	StaleAfter          time.Duration
	CalibrationSettle   time.Duration
	CalibrationInterval time.Duration
	CalibrationSamples  int
	CalibrationTimeout  time.Duration
}

type hilState struct {
	active     bool
	sample     HILSample
	ownedClimb bool // climb rate comes from the injected sample
}

type instance struct {
	kind                Kind
	precisionMultiplier float64
	backend             int // registry index of the owning backend, -1 if none
	slot                Slot

	consumedSeq   uint64
	fresh         bool // a new sample was consumed on the last Update
	lastUpdate    time.Duration
	sensorHealthy bool
	altOK         bool
	state         CalibrationState

	pressure          float64 // Pa
	temperature       float64 // °C
	altitude          float64 // m above the ground reference
	groundPressure    float64
	groundTemperature float64

	climb filter.Derivative
	hil   hilState
}

// Frontend aggregates barometer instances. Create one with New.
type Frontend struct {
	clock  Clock
	logger *slog.Logger
	store  ParamStore

	staleAfter    time.Duration
	calSettle     time.Duration
	calInterval   time.Duration
	calSamples    int
	calTimeout    time.Duration
	params        Params
	altOffsetLive float64

	backends     [MaxBackends]Backend
	numBackends  int
	instances    [MaxInstances]instance
	numInstances int

	extTemperature   float64
	extTemperatureAt time.Duration
	haveExtTemp      bool

	eas2tas         float64
	eas2tasAltitude float64
}

// New returns a frontend with no backends. params is the persisted
// configuration loaded at boot.
func New(params Params, opts Options) *Frontend {
	if opts.Clock == nil {
		opts.Clock = NewSystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = defaultStaleAfter
	}
	if opts.CalibrationSettle <= 0 {
		opts.CalibrationSettle = defaultCalibrationSettle
	}
	if opts.CalibrationInterval <= 0 {
		opts.CalibrationInterval = defaultCalibrationInterval
	}
	if opts.CalibrationSamples <= 0 {
		opts.CalibrationSamples = defaultCalibrationSamples
	}
	if opts.CalibrationTimeout <= 0 {
		opts.CalibrationTimeout = defaultCalibrationTimeout
	}
	if params.SpecificGravity <= 0 {
		params.SpecificGravity = 1
	}

	f := &Frontend{
		clock:       opts.Clock,
		logger:      opts.Logger.With("component", "baro"),
		store:       opts.Store,
		staleAfter:  opts.StaleAfter,
		calSettle:   opts.CalibrationSettle,
		calInterval: opts.CalibrationInterval,
		calSamples:  opts.CalibrationSamples,
		calTimeout:  opts.CalibrationTimeout,
		params:      params,
	}
	f.altOffsetLive = params.AltOffset
	for i := range f.instances {
		inst := &f.instances[i]
		inst.precisionMultiplier = 1
		inst.backend = -1
		inst.slot.index = i
		inst.slot.clock = f.clock
		inst.groundPressure = params.Ground[i].Pressure
		inst.groundTemperature = params.Ground[i].Temperature
	}
	return f
}

// Clock returns the clock shared by the frontend and its backends.
func (f *Frontend) Clock() Clock { return f.clock }

// Params returns the current persisted configuration.
func (f *Frontend) Params() Params { return f.params }

// NumInstances returns the number of claimed instances.
func (f *Frontend) NumInstances() int { return f.numInstances }

// NumBackends returns the number of registered backends.
func (f *Frontend) NumBackends() int { return f.numBackends }

// Primary returns the index of the primary instance. An out of range
// configuration resolves to 0.
func (f *Frontend) Primary() int {
	p := f.params.Primary
	if p < 0 || p >= f.numInstances {
		return 0
	}
	return p
}

// SetPrimary selects and persists the primary instance.
func (f *Frontend) SetPrimary(i int) error {
	if i < 0 || i >= MaxInstances {
		return ErrNoInstance
	}
	f.params.Primary = i
	f.eas2tas = 0
	f.save()
	return nil
}

// SetExternalTemperature supplies an ambient temperature in °C from outside
// the barometers. It is used for altitude and calibration for ten seconds.
func (f *Frontend) SetExternalTemperature(c float64) {
	f.extTemperature = c
	f.extTemperatureAt = f.clock.Now()
	f.haveExtTemp = true
}

func (f *Frontend) externalTemperature() (float64, bool) {
	if !f.haveExtTemp || f.clock.Now()-f.extTemperatureAt >= externalTemperatureMaxAge {
		return 0, false
	}
	return f.extTemperature, true
}

// SetDriftAltitude sets the altitude offset in metres added to every
// instance. The applied value slews towards it on each Update.
func (f *Frontend) SetDriftAltitude(m float64) {
	f.params.AltOffset = m
}

// DriftOffset returns the offset currently applied to altitudes.
func (f *Frontend) DriftOffset() float64 { return f.altOffsetLive }

// SetSpecificGravity sets the fluid specific gravity used by liquid instances.
func (f *Frontend) SetSpecificGravity(sg float64) {
	if sg <= 0 || math.IsNaN(sg) {
		return
	}
	f.params.SpecificGravity = sg
}

// ResetBasePressure makes the next calibration re-capture the liquid base
// pressure.
func (f *Frontend) ResetBasePressure() {
	f.params.ResetBasePressure = true
}

func (f *Frontend) inst(i int) *instance {
	if i < 0 || i >= f.numInstances {
		return nil
	}
	return &f.instances[i]
}

// Pressure returns the pressure of the primary instance in Pascal.
func (f *Frontend) Pressure() float64 { return f.PressureOf(f.Primary()) }

// PressureOf returns the pressure of instance i in Pascal.
func (f *Frontend) PressureOf(i int) float64 {
	if inst := f.inst(i); inst != nil {
		return inst.pressure
	}
	return 0
}

// Temperature returns the temperature of the primary instance in °C.
func (f *Frontend) Temperature() float64 { return f.TemperatureOf(f.Primary()) }

// TemperatureOf returns the temperature of instance i in °C.
func (f *Frontend) TemperatureOf(i int) float64 {
	if inst := f.inst(i); inst != nil {
		return inst.temperature
	}
	return 0
}

// Altitude returns the altitude of the primary instance above its ground
// reference, drift offset included.
func (f *Frontend) Altitude() float64 { return f.AltitudeOf(f.Primary()) }

// AltitudeOf returns the relative altitude of instance i.
func (f *Frontend) AltitudeOf(i int) float64 {
	if inst := f.inst(i); inst != nil {
		return inst.altitude
	}
	return 0
}

// ClimbRate returns the vertical speed of the primary instance in m/s.
func (f *Frontend) ClimbRate() float64 { return f.ClimbRateOf(f.Primary()) }

// ClimbRateOf returns the vertical speed of instance i in m/s.
func (f *Frontend) ClimbRateOf(i int) float64 {
	inst := f.inst(i)
	if inst == nil {
		return 0
	}
	if inst.hil.active && inst.hil.ownedClimb {
		return inst.hil.sample.ClimbRate
	}
	return inst.climb.Slope()
}

// GroundPressure returns the ground reference pressure of the primary.
func (f *Frontend) GroundPressure() float64 { return f.GroundPressureOf(f.Primary()) }

// GroundPressureOf returns the ground reference pressure of instance i.
func (f *Frontend) GroundPressureOf(i int) float64 {
	if inst := f.inst(i); inst != nil {
		return inst.groundPressure
	}
	return 0
}

// GroundTemperature returns the ground reference temperature of the primary.
func (f *Frontend) GroundTemperature() float64 { return f.GroundTemperatureOf(f.Primary()) }

// GroundTemperatureOf returns the ground reference temperature of instance i.
func (f *Frontend) GroundTemperatureOf(i int) float64 {
	if inst := f.inst(i); inst != nil {
		return inst.groundTemperature
	}
	return 0
}

// LastUpdate returns the timestamp of the last sample consumed by the
// primary instance.
func (f *Frontend) LastUpdate() time.Duration { return f.LastUpdateOf(f.Primary()) }

// LastUpdateOf returns the timestamp of the last sample consumed by instance i.
func (f *Frontend) LastUpdateOf(i int) time.Duration {
	if inst := f.inst(i); inst != nil {
		return inst.lastUpdate
	}
	return 0
}

// CalibrationTemperature returns the temperature used as ground reference
// by UpdateCalibration for the primary instance.
func (f *Frontend) CalibrationTemperature() float64 {
	return f.CalibrationTemperatureOf(f.Primary())
}

// CalibrationTemperatureOf prefers a fresh external temperature and
// otherwise caps the sensor reading, which runs warm on most boards.
func (f *Frontend) CalibrationTemperatureOf(i int) float64 {
	if t, ok := f.externalTemperature(); ok {
		return t
	}
	return math.Min(f.TemperatureOf(i), maxCalibrationTemperature)
}

// KindOf returns the pressure model of instance i.
func (f *Frontend) KindOf(i int) Kind {
	if inst := f.inst(i); inst != nil {
		return inst.kind
	}
	return KindAir
}

// CalibrationStateOf returns the calibration state of instance i.
func (f *Frontend) CalibrationStateOf(i int) CalibrationState {
	if inst := f.inst(i); inst != nil {
		return inst.state
	}
	return Uncalibrated
}

// HealthOf returns the health flags of instance i.
func (f *Frontend) HealthOf(i int) Health {
	inst := f.inst(i)
	if inst == nil || !inst.sensorHealthy {
		return Health{}
	}
	calibrated := inst.state == Calibrated || inst.hil.active
	return Health{
		SensorHealthy: true,
		Calibrated:    calibrated,
		AltitudeValid: calibrated && inst.altOK,
	}
}

// Healthy reports whether instance i is sensor healthy, calibrated and has
// a valid altitude.
func (f *Frontend) Healthy(i int) bool { return f.HealthOf(i).OK() }

// PrimaryHealthy reports whether the primary instance is fully healthy.
func (f *Frontend) PrimaryHealthy() bool { return f.Healthy(f.Primary()) }

// AllHealthy reports whether every claimed instance is fully healthy. It is
// false when there are no instances.
func (f *Frontend) AllHealthy() bool {
	if f.numInstances == 0 {
		return false
	}
	for i := 0; i < f.numInstances; i++ {
		if !f.Healthy(i) {
			return false
		}
	}
	return true
}

// EAS2TAS returns the equivalent to true airspeed factor at the primary's
// altitude. It is recomputed only when the altitude moved 25 m or more.
func (f *Frontend) EAS2TAS() float64 {
	alt := f.Altitude()
	if f.eas2tas != 0 && math.Abs(alt-f.eas2tasAltitude) < eas2tasAltitudeEpsilon {
		return f.eas2tas
	}
	f.eas2tas = atmosphere.EAS2TAS(alt)
	f.eas2tasAltitude = alt
	return f.eas2tas
}

// AirDensityRatio returns the air density relative to sea level at the
// primary's altitude.
func (f *Frontend) AirDensityRatio() float64 {
	e := f.EAS2TAS()
	if e <= 0 {
		return 1
	}
	return 1 / (e * e)
}

func (f *Frontend) save() {
	if f.store == nil {
		return
	}
	if err := f.store.Save(f.params); err != nil {
		f.logger.Error("failed to persist parameters", "error", err)
	}
}
