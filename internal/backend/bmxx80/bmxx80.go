// Package bmxx80 is the barometer backend for Bosch BMP280/BME280 sensors
// on an I2C bus.
package bmxx80

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"cloudpico-baro/internal/baro"
)

type Options struct {
	// Bus is the I2C bus name; "" selects the first bus, usually /dev/i2c-1.
	Bus      string
	Address  uint16
	Interval time.Duration
	Logger   *slog.Logger
}

// Backend reads one BMxx80 in continuous mode. The device goroutine feeds a
// channel which Accumulate drains without blocking.
type Backend struct {
	slot     *baro.Slot
	bus      i2c.BusCloser
	dev      *bmxx80.Dev
	readings <-chan physic.Env
	logger   *slog.Logger
}

var _ baro.Backend = (*Backend)(nil)

// New probes the sensor and, only once it answers, claims a slot from c.
func New(c baro.Claimer, opts Options) (*Backend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Address == 0 {
		opts.Address = 0x76
	}
	if opts.Interval <= 0 {
		opts.Interval = 40 * time.Millisecond
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", opts.Bus, err)
	}
	dev, err := bmxx80.NewI2C(bus, opts.Address, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("bmxx80 at %#x: %w", opts.Address, err)
	}
	readings, err := dev.SenseContinuous(opts.Interval)
	if err != nil {
		_ = dev.Halt()
		_ = bus.Close()
		return nil, fmt.Errorf("bmxx80 continuous sensing: %w", err)
	}

	slot, err := c.ClaimInstance()
	if err != nil {
		_ = dev.Halt()
		_ = bus.Close()
		return nil, err
	}

	opts.Logger.Info("bmxx80 barometer ready",
		"device", dev.String(),
		"address", fmt.Sprintf("%#x", opts.Address),
		"interval", opts.Interval,
		"instance", slot.Index(),
	)
	return &Backend{slot: slot, bus: bus, dev: dev, readings: readings, logger: opts.Logger}, nil
}

func (b *Backend) Name() string { return "bmxx80" }

// Slot returns the claimed slot, for RegisterBackend.
func (b *Backend) Slot() *baro.Slot { return b.slot }

// Accumulate publishes the newest reading queued since the last call.
func (b *Backend) Accumulate() {
	var latest physic.Env
	got := false
drain:
	for {
		select {
		case env, ok := <-b.readings:
			if !ok {
				b.readings = nil
				break drain
			}
			latest, got = env, true
		default:
			break drain
		}
	}
	if got {
		p, t := fromEnv(latest)
		b.slot.Publish(p, t)
	}
}

// Close stops the device and releases the bus.
func (b *Backend) Close() error {
	if err := b.dev.Halt(); err != nil {
		_ = b.bus.Close()
		return fmt.Errorf("halt bmxx80: %w", err)
	}
	return b.bus.Close()
}

// fromEnv converts a periph reading to Pascal and degrees Celsius.
func fromEnv(env physic.Env) (pressure, temperature float64) {
	return float64(env.Pressure) / float64(physic.Pascal), env.Temperature.Celsius()
}
