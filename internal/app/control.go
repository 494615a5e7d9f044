package app

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"cloudpico-baro/internal/baro"
	"cloudpico-baro/internal/telemetry"
)

// publisher is the MQTT side of the control loop.
type publisher interface {
	IsConnected() bool
	PublishState(telemetry.State) error
	PublishHealth(telemetry.Health) error
}

// controller owns the frontend on the control goroutine. Other goroutines
// reach it only through its channels. Telemetry is published from its own
// goroutine out of latestState so a slow broker cannot hold up Update.
type controller struct {
	f         *baro.Frontend
	store     baro.ParamStore
	state     *latestState
	observe   func(baro.Snapshot)
	pub       publisher
	vehicleID string

	updateInterval     time.Duration
	telemetryInterval  time.Duration
	calibrateOnStartup bool
	// sensorWait bounds how long startup calibration waits for the first
	// samples.
	sensorWait time.Duration

	calibrate chan bool // true requests a full calibration
	extTemp   chan float64
}

func newController(f *baro.Frontend, store baro.ParamStore, state *latestState) *controller {
	return &controller{
		f:                 f,
		store:             store,
		state:             state,
		observe:           func(baro.Snapshot) {},
		updateInterval:    100 * time.Millisecond,
		telemetryInterval: time.Second,
		sensorWait:        5 * time.Second,
		calibrate:         make(chan bool, 1),
		extTemp:           make(chan float64, 1),
	}
}

// RequestCalibration queues a ground calibration: a full multi-sample
// calibration when full is set, otherwise a single-sample ground update of
// the air instances. It returns false when a request is already pending.
func (c *controller) RequestCalibration(full bool) bool {
	select {
	case c.calibrate <- full:
		return true
	default:
		return false
	}
}

// OfferExternalTemperature hands an ambient temperature to the control
// loop. A value not yet consumed is replaced.
func (c *controller) OfferExternalTemperature(celsius float64) {
	for {
		select {
		case c.extTemp <- celsius:
			return
		default:
		}
		select {
		case <-c.extTemp:
		default:
		}
	}
}

func (c *controller) run(ctx context.Context) error {
	c.f.Update()
	if c.calibrateOnStartup {
		if !c.waitForSensors(ctx) {
			c.persist()
			return nil
		}
		c.runCalibration()
	}
	c.publishSnapshot()

	update := time.NewTicker(c.updateInterval)
	defer update.Stop()

	for {
		select {
		case <-ctx.Done():
			c.persist()
			return nil
		case <-update.C:
			c.f.Update()
			c.publishSnapshot()
		case full := <-c.calibrate:
			if full {
				c.runCalibration()
			} else {
				c.f.UpdateCalibration()
			}
			c.publishSnapshot()
		case t := <-c.extTemp:
			c.f.SetExternalTemperature(t)
		}
	}
}

// waitForSensors drives Update until every instance has reported or
// sensorWait elapses. It returns false when ctx is cancelled first.
func (c *controller) waitForSensors(ctx context.Context) bool {
	deadline := time.NewTimer(c.sensorWait)
	defer deadline.Stop()
	tick := time.NewTicker(c.updateInterval)
	defer tick.Stop()

	for !c.sensorsReporting() {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			slog.Warn("not every barometer reported before calibration", "waited", c.sensorWait)
			return true
		case <-tick.C:
			c.f.Update()
		}
	}
	return true
}

func (c *controller) sensorsReporting() bool {
	for i := 0; i < c.f.NumInstances(); i++ {
		if !c.f.HealthOf(i).SensorHealthy {
			return false
		}
	}
	return true
}

func (c *controller) runCalibration() {
	start := time.Now()
	slog.Info("calibrating barometers", "instances", c.f.NumInstances())
	c.f.Calibrate()
	slog.Info("barometer calibration finished",
		"took", time.Since(start).Round(time.Millisecond),
		"all_healthy", c.f.AllHealthy(),
		"ground_pressure", c.f.GroundPressure(),
	)
}

func (c *controller) publishSnapshot() {
	snap := c.f.Snapshot()
	c.state.set(snap, time.Now())
	c.observe(snap)
}

// runTelemetry publishes the latest state every telemetry interval, and the
// health whenever it differs from the last health the broker accepted.
func (c *controller) runTelemetry(ctx context.Context) error {
	if c.pub == nil {
		return nil
	}
	tele := time.NewTicker(c.telemetryInterval)
	defer tele.Stop()

	var lastHealth []baro.Health
	var lastAt time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tele.C:
		}
		if !c.pub.IsConnected() {
			continue
		}
		snap, at, ok := c.state.Latest()
		if !ok || !at.After(lastAt) {
			continue
		}
		lastAt = at
		if err := c.pub.PublishState(telemetry.StateFromSnapshot(c.vehicleID, snap, at)); err != nil {
			slog.Warn("publish baro state", "error", err)
		}

		health := make([]baro.Health, 0, snap.NumInstances)
		for _, in := range snap.Active() {
			health = append(health, in.Health)
		}
		if lastHealth != nil && slices.Equal(health, lastHealth) {
			continue
		}
		if err := c.pub.PublishHealth(telemetry.HealthFromSnapshot(c.vehicleID, snap, at)); err != nil {
			slog.Warn("publish baro health", "error", err)
			continue
		}
		lastHealth = health
	}
}

func (c *controller) persist() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.f.Params()); err != nil {
		slog.Error("failed to persist barometer parameters", "error", err)
		return
	}
	slog.Info("barometer parameters saved")
}
