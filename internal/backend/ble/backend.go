// Package ble is a barometer backend fed by the pressure readings that
// weather stations broadcast in BLE advertisements.
package ble

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"

	"cloudpico-baro/internal/baro"
)

const (
	// PressureMultiplier converts the advertised hPa to Pa.
	PressureMultiplier = 100

	dedupMaxIDsPerDevice = 500
	queueLen             = 8
)

type Options struct {
	Adapter string
	// DeviceID restricts the backend to one station; 0 accepts any.
	DeviceID uint32
	Logger   *slog.Logger
}

// Backend turns station advertisements into samples for one instance.
// Advertisements arrive on the scan goroutine and are queued; Accumulate
// publishes the newest one.
type Backend struct {
	slot     *baro.Slot
	listener *Listener
	deviceID uint32
	logger   *slog.Logger

	queue   chan Reading
	dropped atomic.Uint64

	dedupMu sync.Mutex
	seen    map[string]map[uint32]struct{}
}

var _ baro.Backend = (*Backend)(nil)

// New claims a slot from c. Scanning starts with Run.
func New(c baro.Claimer, opts Options) (*Backend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	slot, err := c.ClaimInstance()
	if err != nil {
		return nil, err
	}
	return &Backend{
		slot: slot,
		listener: NewListener(opts.Adapter, Filter{
			CompanyID:            CompanyID,
			ManufacturerDataPref: []byte{payloadMagic0, payloadMagic1},
		}, opts.Logger),
		deviceID: opts.DeviceID,
		logger:   opts.Logger,
		queue:    make(chan Reading, queueLen),
		seen:     make(map[string]map[uint32]struct{}),
	}, nil
}

func (b *Backend) Name() string { return "ble" }

// Slot returns the claimed slot, for RegisterBackend.
func (b *Backend) Slot() *baro.Slot { return b.slot }

// Dropped returns the number of readings discarded because the queue was full.
func (b *Backend) Dropped() uint64 { return b.dropped.Load() }

// Run scans until ctx is cancelled.
func (b *Backend) Run(ctx context.Context) error {
	return b.listener.Run(ctx, b.HandleMatch)
}

// HandleMatch parses, deduplicates and queues one advertisement.
func (b *Backend) HandleMatch(m Match) {
	r, err := ParseReading(m.Data)
	if err != nil {
		b.logger.Debug("ble: ignore non-station payload", "addr", m.Address, "error", err)
		return
	}
	if b.deviceID != 0 && r.DeviceID != b.deviceID {
		return
	}
	if b.duplicate(m.Address, r.ReadingID) {
		return
	}

	select {
	case b.queue <- r:
	default:
		b.dropped.Add(1)
	}
	b.logger.Debug("ble: station reading",
		"addr", m.Address,
		"device_id", r.DeviceID,
		"reading_id", r.ReadingID,
		"rssi", m.RSSI,
		"P", r.Pressure, "T", r.Temperature,
		"data", hex.EncodeToString(m.Data),
	)
}

func (b *Backend) duplicate(addr string, id uint32) bool {
	b.dedupMu.Lock()
	defer b.dedupMu.Unlock()

	ids := b.seen[addr]
	if ids == nil {
		ids = make(map[uint32]struct{})
		b.seen[addr] = ids
	}
	if _, ok := ids[id]; ok {
		return true
	}
	if len(ids) >= dedupMaxIDsPerDevice {
		ids = make(map[uint32]struct{})
		b.seen[addr] = ids
	}
	ids[id] = struct{}{}
	return false
}

func (b *Backend) Accumulate() {
	var latest Reading
	got := false
drain:
	for {
		select {
		case r := <-b.queue:
			latest, got = r, true
		default:
			break drain
		}
	}
	if got {
		b.slot.Publish(latest.Pressure, latest.Temperature)
	}
}
