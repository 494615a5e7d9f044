// Package httpapi serves barometer status, calibration history and metrics.
package httpapi

import (
	"net/http"
	"time"

	"cloudpico-baro/internal/baro"
	"cloudpico-baro/internal/config"
	"cloudpico-baro/internal/params"
)

// StateReader returns the latest published snapshot and its wall-clock time.
// ok is false until the first snapshot exists.
type StateReader interface {
	Latest() (snap baro.Snapshot, at time.Time, ok bool)
}

type CalibrationLister interface {
	RecentCalibrations(limit int) ([]params.Calibration, error)
}

// Calibrator queues a ground calibration on the control loop, full or
// single-sample. It returns false when one is already pending.
type Calibrator interface {
	RequestCalibration(full bool) bool
}

// Deps are the handlers' collaborators. History, Calibrator and Metrics
// may be nil, in which case their routes are not registered.
type Deps struct {
	VehicleID  string
	State      StateReader
	History    CalibrationLister
	Calibrator Calibrator
	Metrics    http.Handler

	// StreamInterval is how often /api/baro/stream checks for a new
	// snapshot; 0 means one second.
	StreamInterval time.Duration
	// Done closes open streams. Hijacked connections outlive
	// http.Server.Shutdown.
	Done <-chan struct{}
}

func NewMux(d Deps) *http.ServeMux {
	if d.StreamInterval <= 0 {
		d.StreamInterval = time.Second
	}
	h := &handlers{deps: d, now: time.Now}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /api/baro", h.handleStatus)
	mux.HandleFunc("GET /api/baro/stream", h.handleStream)
	if d.History != nil {
		mux.HandleFunc("GET /api/baro/calibrations", h.handleCalibrations)
	}
	if d.Calibrator != nil {
		mux.HandleFunc("POST /api/baro/calibrate", h.handleCalibrate)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	return mux
}

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
