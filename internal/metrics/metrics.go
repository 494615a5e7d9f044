// Package metrics exports barometer state as Prometheus gauges.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cloudpico-baro/internal/baro"
)

const namespace = "baro"

type Metrics struct {
	reg *prometheus.Registry

	pressure     *prometheus.GaugeVec
	temperature  *prometheus.GaugeVec
	altitude     *prometheus.GaugeVec
	climbRate    *prometheus.GaugeVec
	healthy      *prometheus.GaugeVec
	primary      prometheus.Gauge
	allHealthy   prometheus.Gauge
	eas2tas      prometheus.Gauge
	driftOffset  prometheus.Gauge
	calibrations *prometheus.CounterVec
}

// New registers the barometer collectors on a private registry together
// with the process and Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	f := promauto.With(reg)
	instance := []string{"instance", "backend"}

	return &Metrics{
		reg: reg,
		pressure: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pressure_pascals",
			Help: "Latest pressure per sensor instance.",
		}, instance),
		temperature: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "temperature_celsius",
			Help: "Latest sensor temperature per instance.",
		}, instance),
		altitude: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "altitude_meters",
			Help: "Altitude above the calibration point per instance.",
		}, instance),
		climbRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "climb_rate_meters_per_second",
			Help: "Climb rate per instance.",
		}, instance),
		healthy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "healthy",
			Help: "1 when the instance is healthy, calibrated and has a valid altitude.",
		}, instance),
		primary: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "primary_instance",
			Help: "Index of the primary instance.",
		}),
		allHealthy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "all_healthy",
			Help: "1 when every registered instance is healthy.",
		}),
		eas2tas: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "eas2tas_ratio",
			Help: "Equivalent to true airspeed factor at the primary altitude.",
		}),
		driftOffset: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "drift_offset_meters",
			Help: "Current slewed altitude drift offset.",
		}),
		calibrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "calibrations_total",
			Help: "Ground calibrations by outcome.",
		}, []string{"instance", "result"}),
	}
}

// Observe copies a snapshot into the gauges.
func (m *Metrics) Observe(snap baro.Snapshot) {
	for _, in := range snap.Active() {
		l := prometheus.Labels{"instance": strconv.Itoa(in.Index), "backend": in.Backend}
		m.pressure.With(l).Set(in.Pressure)
		m.temperature.With(l).Set(in.Temperature)
		m.altitude.With(l).Set(in.Altitude)
		m.climbRate.With(l).Set(in.ClimbRate)
		m.healthy.With(l).Set(boolGauge(in.Health.OK()))
	}
	m.primary.Set(float64(snap.Primary))
	m.allHealthy.Set(boolGauge(snap.AllHealthy))
	m.eas2tas.Set(snap.EAS2TAS)
	m.driftOffset.Set(snap.DriftOffset)
}

// RecordCalibration counts a calibration outcome.
func (m *Metrics) RecordCalibration(rec baro.CalibrationRecord) error {
	result := "failed"
	if rec.Succeeded {
		result = "ok"
	}
	m.calibrations.WithLabelValues(strconv.Itoa(rec.Instance), result).Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
