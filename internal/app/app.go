// Package app wires the barometer daemon together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"cloudpico-baro/internal/baro"
	"cloudpico-baro/internal/config"
	"cloudpico-baro/internal/db"
	"cloudpico-baro/internal/db/migrate"
	"cloudpico-baro/internal/httpapi"
	"cloudpico-baro/internal/logging"
	"cloudpico-baro/internal/metrics"
	"cloudpico-baro/internal/mqtt"
	"cloudpico-baro/internal/params"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.SQLitePath,
		"backends", cfg.Backends,
		"vehicleID", cfg.VehicleID,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"updateInterval", cfg.UpdateInterval,
		"staleAfter", cfg.StaleAfter,
	)

	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if _, err := migrate.Run(dbConn, slog.Default()); err != nil {
		return err
	}

	store := params.NewStore(dbConn, slog.Default())
	stored, err := store.Load()
	if err != nil {
		return err
	}

	m := metrics.New()
	sink := paramSink{store: store, metrics: m}

	baroLog := logging.Component(slog.Default(), "baro", cfg.BaroLogLevel)
	f := baro.New(stored, baro.Options{
		Clock:              baro.NewSystemClock(),
		Logger:             baroLog,
		Store:              sink,
		StaleAfter:         cfg.StaleAfter,
		CalibrationSamples: cfg.CalibrationSamples,
		CalibrationTimeout: cfg.CalibrationTimeout,
	})

	bk, err := registerBackends(f, cfg, baroLog)
	if err != nil {
		return err
	}
	defer bk.Close()

	applyLiquidParams(f, cfg)

	if cfg.Primary >= 0 {
		if cfg.Primary >= f.NumInstances() {
			return fmt.Errorf("BARO_PRIMARY=%d but only %d instances registered", cfg.Primary, f.NumInstances())
		}
		if err := f.SetPrimary(cfg.Primary); err != nil {
			return err
		}
	}
	slog.Info("barometer frontend ready",
		"instances", f.NumInstances(),
		"backends", f.NumBackends(),
		"primary", f.Primary(),
	)

	state := &latestState{}
	ctrl := newController(f, sink, state)
	ctrl.observe = m.Observe
	ctrl.vehicleID = cfg.VehicleID
	ctrl.updateInterval = cfg.UpdateInterval
	ctrl.telemetryInterval = cfg.TelemetryInterval
	ctrl.calibrateOnStartup = cfg.CalibrateOnStartup
	ctrl.sensorWait = cfg.CalibrationTimeout

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		mqttClient = mqtt.NewClient(cfg, slog.Default(), ctrl.OfferExternalTemperature)
		ctrl.pub = mqttClient
	}

	g, gctx := errgroup.WithContext(ctx)

	mux := httpapi.NewMux(httpapi.Deps{
		VehicleID:      cfg.VehicleID,
		State:          state,
		History:        store,
		Calibrator:     ctrl,
		Metrics:        m.Handler(),
		StreamInterval: cfg.UpdateInterval,
		Done:           gctx.Done(),
	})
	srv := httpapi.NewServer(cfg, mux)

	// Accumulate timer; the only goroutine besides the control loop that
	// touches the frontend.
	g.Go(func() error {
		t := time.NewTicker(cfg.AccumulateInterval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				f.Accumulate()
			}
		}
	})

	for _, run := range bk.runners {
		g.Go(func() error { return run(gctx) })
	}

	g.Go(func() error { return ctrl.run(gctx) })
	g.Go(func() error { return ctrl.runTelemetry(gctx) })

	if mqttClient != nil {
		g.Go(func() error {
			defer mqttClient.Disconnect()
			if err := mqttClient.Connect(gctx); err != nil && gctx.Err() == nil {
				slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
			}
			<-gctx.Done()
			return nil
		})
	}

	g.Go(func() error {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("http shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// applyLiquidParams applies the configured fluid settings on top of the
// persisted ones.
func applyLiquidParams(f *baro.Frontend, cfg config.Config) {
	if cfg.SpecificGravity > 0 {
		f.SetSpecificGravity(cfg.SpecificGravity)
	}
	if cfg.ResetBasePressure {
		f.ResetBasePressure()
		slog.Info("liquid base pressure will be re-captured at the next calibration")
	}
}
