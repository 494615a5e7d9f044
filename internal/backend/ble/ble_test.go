package ble

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudpico-baro/internal/baro"
)

type testClock struct{ now atomic.Int64 }

func (c *testClock) Now() time.Duration { return time.Duration(c.now.Load()) }

func (c *testClock) Sleep(d time.Duration) { c.now.Add(int64(d)) }

func TestParseReading(t *testing.T) {
	want := Reading{DeviceID: 7, ReadingID: 42, Temperature: 21.5, Pressure: 1013.25, Humidity: 40}
	got, err := ParseReading(encodeReading(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseReading_Invalid(t *testing.T) {
	valid := encodeReading(Reading{Pressure: 1000})

	badMagic := append([]byte(nil), valid...)
	badMagic[1] = 0xAA

	zeroPressure := encodeReading(Reading{Pressure: 0})

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short", data: valid[:payloadLen-1]},
		{name: "bad magic", data: badMagic},
		{name: "zero pressure", data: zeroPressure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReading(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestFilter_Accepts(t *testing.T) {
	f := Filter{CompanyID: CompanyID, ManufacturerDataPref: []byte{payloadMagic0, payloadMagic1}}

	assert.True(t, f.accepts(CompanyID, []byte{0x01, 0xD0, 0x00}))
	assert.False(t, f.accepts(0x004C, []byte{0x01, 0xD0, 0x00}))
	assert.False(t, f.accepts(CompanyID, []byte{0x01}))
	assert.True(t, Filter{}.accepts(0x1234, nil))
}

func newBackend(t *testing.T, deviceID uint32) (*Backend, *baro.Frontend) {
	t.Helper()
	clock := &testClock{}
	clock.Sleep(time.Second)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := baro.New(baro.DefaultParams(), baro.Options{Clock: clock, Logger: logger})

	b, err := New(f, Options{DeviceID: deviceID, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, f.RegisterBackend(b, b.Slot()))
	require.NoError(t, f.SetPrecisionMultiplier(b.Slot().Index(), PressureMultiplier))
	return b, f
}

func TestBackend_PublishesNewestReading(t *testing.T) {
	b, f := newBackend(t, 0)

	b.HandleMatch(Match{Address: "AA", Data: encodeReading(Reading{ReadingID: 1, Pressure: 1000, Temperature: 10})})
	b.HandleMatch(Match{Address: "AA", Data: encodeReading(Reading{ReadingID: 2, Pressure: 1013.25, Temperature: 11})})
	f.Accumulate()
	f.Update()

	assert.InDelta(t, 101325, f.Pressure(), 1e-2)
	assert.InDelta(t, 11, f.Temperature(), 1e-6)
	assert.True(t, f.HealthOf(0).SensorHealthy)
}

func TestBackend_DeduplicatesAndFilters(t *testing.T) {
	b, _ := newBackend(t, 9)

	b.HandleMatch(Match{Address: "AA", Data: encodeReading(Reading{DeviceID: 9, ReadingID: 1, Pressure: 1000})})
	b.HandleMatch(Match{Address: "AA", Data: encodeReading(Reading{DeviceID: 9, ReadingID: 1, Pressure: 1000})})
	b.HandleMatch(Match{Address: "BB", Data: encodeReading(Reading{DeviceID: 3, ReadingID: 2, Pressure: 1000})})
	b.HandleMatch(Match{Address: "CC", Data: []byte{0x01, 0xD0}})

	assert.Len(t, b.queue, 1)
}

func TestBackend_FullQueueDrops(t *testing.T) {
	b, _ := newBackend(t, 0)

	for i := 0; i < queueLen+3; i++ {
		b.HandleMatch(Match{Address: "AA", Data: encodeReading(Reading{ReadingID: uint32(i), Pressure: 1000})})
	}
	assert.Equal(t, uint64(3), b.Dropped())
}

// encodeReading is the inverse of ParseReading.
func encodeReading(r Reading) []byte {
	b := make([]byte, payloadLen)
	b[0], b[1] = payloadMagic0, payloadMagic1
	binary.LittleEndian.PutUint32(b[2:6], r.DeviceID)
	binary.LittleEndian.PutUint32(b[6:10], r.ReadingID)
	binary.LittleEndian.PutUint32(b[10:14], math.Float32bits(float32(r.Temperature)))
	binary.LittleEndian.PutUint32(b[14:18], math.Float32bits(float32(r.Pressure)))
	binary.LittleEndian.PutUint32(b[18:22], math.Float32bits(float32(r.Humidity)))
	return b
}
