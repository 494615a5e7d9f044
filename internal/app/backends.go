package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloudpico-baro/internal/backend/ble"
	"cloudpico-baro/internal/backend/bmxx80"
	"cloudpico-baro/internal/backend/sim"
	"cloudpico-baro/internal/baro"
	"cloudpico-baro/internal/config"
)

const simGroundTemperature = 15.0

// backends are the configured drivers. runners are long-running receive
// loops; closers release hardware on shutdown.
type backends struct {
	runners []func(ctx context.Context) error
	closers []io.Closer
}

func (b *backends) Close() {
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			slog.Error("backend close", "error", err)
		}
	}
}

// registerBackends constructs every backend named in cfg.Backends, in
// order, and registers it with f.
func registerBackends(f *baro.Frontend, cfg config.Config, logger *slog.Logger) (*backends, error) {
	out := &backends{}
	for _, name := range cfg.Backends {
		if err := registerBackend(f, cfg, logger, name, out); err != nil {
			out.Close()
			return nil, fmt.Errorf("%s backend: %w", name, err)
		}
	}
	return out, nil
}

func registerBackend(f *baro.Frontend, cfg config.Config, logger *slog.Logger, name string, out *backends) error {
	switch name {
	case config.BackendSim:
		b, err := sim.New(f, sim.Options{
			Instances:         cfg.SimInstances,
			GroundPressure:    cfg.SimGroundPressure,
			GroundTemperature: simGroundTemperature,
			ClimbRate:         cfg.SimClimbRate,
			PressureSpread:    2,
			Logger:            logger,
		})
		if err != nil {
			return err
		}
		if err := f.RegisterBackend(b, b.Slots()...); err != nil {
			return err
		}
		return setKind(f, cfg.SimKind, b.Slots()...)

	case config.BackendBMXX80:
		b, err := bmxx80.New(f, bmxx80.Options{
			Address:  cfg.BME280Address,
			Interval: cfg.AccumulateInterval,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		out.closers = append(out.closers, b)
		if err := f.RegisterBackend(b, b.Slot()); err != nil {
			return err
		}
		return setKind(f, cfg.BME280Kind, b.Slot())

	case config.BackendBLE:
		b, err := ble.New(f, ble.Options{
			Adapter:  cfg.BLEAdapter,
			DeviceID: cfg.BLEDeviceID,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		if err := f.RegisterBackend(b, b.Slot()); err != nil {
			return err
		}
		if err := f.SetPrecisionMultiplier(b.Slot().Index(), ble.PressureMultiplier); err != nil {
			return err
		}
		out.runners = append(out.runners, func(ctx context.Context) error {
			if err := b.Run(ctx); err != nil {
				slog.Warn("ble scanning unavailable; instance will stay unhealthy",
					"instance", b.Slot().Index(),
					"error", err,
				)
			}
			return nil
		})
		return nil

	default:
		return fmt.Errorf("unknown backend %q", name)
	}
}

// setKind applies the configured pressure model to the given slots. An
// empty name keeps the air default.
func setKind(f *baro.Frontend, name string, slots ...*baro.Slot) error {
	if name == "" {
		return nil
	}
	kind, err := baro.ParseKind(name)
	if err != nil {
		return err
	}
	for _, s := range slots {
		if err := f.SetKind(s.Index(), kind); err != nil {
			return err
		}
	}
	return nil
}
