package baro

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	now     atomic.Int64
	onSleep func()
}

func (c *fakeClock) Now() time.Duration { return time.Duration(c.now.Load()) }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now.Add(int64(d))
	if c.onSleep != nil {
		c.onSleep()
	}
}

func (c *fakeClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

// fakeSensor publishes a fixed reading on every Accumulate.
type fakeSensor struct {
	name        string
	slot        *Slot
	pressure    float64
	temperature float64
	silent      bool
	next        func() (p, t float64)
}

func (s *fakeSensor) Name() string { return s.name }

func (s *fakeSensor) Accumulate() {
	if s.silent {
		return
	}
	if s.next != nil {
		s.pressure, s.temperature = s.next()
	}
	s.slot.Publish(s.pressure, s.temperature)
}

type memStore struct {
	saved   []Params
	records []CalibrationRecord
}

func (m *memStore) Save(p Params) error {
	m.saved = append(m.saved, p)
	return nil
}

func (m *memStore) RecordCalibration(rec CalibrationRecord) error {
	m.records = append(m.records, rec)
	return nil
}

type rig struct {
	f       *Frontend
	clock   *fakeClock
	store   *memStore
	sensors []*fakeSensor
}

const tickInterval = 50 * time.Millisecond

func newRig(t *testing.T, n int) *rig {
	t.Helper()
	return newRigWithParams(t, n, DefaultParams())
}

func newRigWithParams(t *testing.T, n int, params Params) *rig {
	t.Helper()
	r := &rig{clock: &fakeClock{}, store: &memStore{}}
	r.clock.Advance(10 * time.Second)
	r.f = New(params, Options{
		Clock:  r.clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:  r.store,
	})
	r.clock.onSleep = r.f.Accumulate

	for i := 0; i < n; i++ {
		slot, err := r.f.ClaimInstance()
		if err != nil {
			t.Fatalf("claim instance %d: %v", i, err)
		}
		s := &fakeSensor{name: "fake", slot: slot, pressure: 101325, temperature: 15}
		if err := r.f.RegisterBackend(s, slot); err != nil {
			t.Fatalf("register backend %d: %v", i, err)
		}
		r.sensors = append(r.sensors, s)
	}
	return r
}

// tick runs one timer pass and one control pass.
func (r *rig) tick() {
	r.clock.Advance(tickInterval)
	r.f.Accumulate()
	r.f.Update()
}

func (r *rig) ticks(n int) {
	for range n {
		r.tick()
	}
}

func (r *rig) calibrate(t *testing.T) {
	t.Helper()
	r.tick()
	r.f.Calibrate()
	for i := range r.sensors {
		if got := r.f.CalibrationStateOf(i); got != Calibrated {
			t.Fatalf("instance %d: got state %v, want %v", i, got, Calibrated)
		}
	}
}
