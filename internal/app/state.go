package app

import (
	"errors"
	"sync"
	"time"

	"cloudpico-baro/internal/baro"
	"cloudpico-baro/internal/metrics"
	"cloudpico-baro/internal/params"
)

// latestState holds the snapshot most recently published by the control
// loop for the HTTP handlers.
type latestState struct {
	mu   sync.RWMutex
	snap baro.Snapshot
	at   time.Time
	ok   bool
}

func (s *latestState) Latest() (baro.Snapshot, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.at, s.ok
}

func (s *latestState) set(snap baro.Snapshot, at time.Time) {
	s.mu.Lock()
	s.snap, s.at, s.ok = snap, at, true
	s.mu.Unlock()
}

// paramSink persists parameters and fans calibration outcomes out to the
// database and the metrics.
type paramSink struct {
	store   *params.Store
	metrics *metrics.Metrics
}

var (
	_ baro.ParamStore          = paramSink{}
	_ baro.CalibrationRecorder = paramSink{}
)

func (s paramSink) Save(p baro.Params) error { return s.store.Save(p) }

func (s paramSink) RecordCalibration(rec baro.CalibrationRecord) error {
	return errors.Join(
		s.store.RecordCalibration(rec),
		s.metrics.RecordCalibration(rec),
	)
}
