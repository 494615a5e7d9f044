package baro

import (
	"math"
	"sync/atomic"
	"time"
)

// slotReadAttempts bounds how often the reader retries when it races the
// writer. A reader that gives up simply sees no new sample this cycle.
const slotReadAttempts = 4

// Sample is a raw reading staged by a backend. Pressure is in the
// backend's native unit; the instance precision multiplier converts it to
// Pascal.
type Sample struct {
	Pressure    float64
	Temperature float64 // °C
	Time        time.Duration
}

// Slot is the staging area of one instance. It is a single-writer,
// single-reader seqlock: the backend publishes whole samples, the frontend
// reads them on Update. Neither side blocks.
type Slot struct {
	index int
	clock Clock

	seq         atomic.Uint64 // odd while a write is in progress
	pressure    atomic.Uint64
	temperature atomic.Uint64
	time        atomic.Int64
}

// Index returns the instance index this slot feeds.
func (s *Slot) Index() int { return s.index }

// Publish stages a sample stamped with the frontend clock.
func (s *Slot) Publish(pressure, temperature float64) {
	s.PublishAt(Sample{Pressure: pressure, Temperature: temperature, Time: s.clock.Now()})
}

// PublishAt stages a sample carrying its own timestamp. Only one goroutine
// may publish to a given slot.
func (s *Slot) PublishAt(smp Sample) {
	seq := s.seq.Load()
	s.seq.Store(seq + 1)
	s.pressure.Store(math.Float64bits(smp.Pressure))
	s.temperature.Store(math.Float64bits(smp.Temperature))
	s.time.Store(int64(smp.Time))
	s.seq.Store(seq + 2)
}

// load returns the latest published sample and its sequence number. ok is
// false when nothing was ever published or the writer kept interfering.
func (s *Slot) load() (smp Sample, seq uint64, ok bool) {
	for range slotReadAttempts {
		before := s.seq.Load()
		if before&1 == 1 {
			continue
		}
		smp = Sample{
			Pressure:    math.Float64frombits(s.pressure.Load()),
			Temperature: math.Float64frombits(s.temperature.Load()),
			Time:        time.Duration(s.time.Load()),
		}
		if s.seq.Load() == before {
			return smp, before, before != 0
		}
	}
	return Sample{}, 0, false
}
