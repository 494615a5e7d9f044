package ble

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"
)

// Match is a single advertisement that passed the filter.
type Match struct {
	Address   string
	RSSI      int16
	LocalName string
	CompanyID uint16
	Data      []byte
	SeenAt    time.Time
}

type Filter struct {
	LocalName            string
	CompanyID            uint16
	ManufacturerDataPref []byte
}

// Listener wraps BlueZ scanning with context cancellation.
type Listener struct {
	adapterID string
	filter    Filter
	logger    *slog.Logger
}

func NewListener(adapterID string, filter Filter, logger *slog.Logger) *Listener {
	if adapterID == "" {
		adapterID = "hci0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{adapterID: adapterID, filter: filter, logger: logger}
}

// Run scans until ctx is cancelled, calling onMatch from the scan
// goroutine for every matching advertisement.
func (l *Listener) Run(ctx context.Context, onMatch func(Match)) error {
	adapter := bluetooth.NewAdapter(l.adapterID)
	l.logger.Info("ble: enabling adapter", "adapter", l.adapterID)
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", l.adapterID, err)
	}

	go func() {
		<-ctx.Done()
		_ = adapter.StopScan()
	}()

	l.logger.Info("ble: scanning started",
		"filter_name", l.filter.LocalName,
		"filter_company", fmt.Sprintf("0x%04X", l.filter.CompanyID),
		"filter_prefix", fmt.Sprintf("% X", l.filter.ManufacturerDataPref),
	)

	// Scan blocks until StopScan or error.
	err := adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		name := r.LocalName()
		if l.filter.LocalName != "" && name != l.filter.LocalName {
			return
		}
		for _, md := range r.ManufacturerData() {
			if !l.filter.accepts(md.CompanyID, md.Data) {
				continue
			}
			onMatch(Match{
				Address:   r.Address.String(),
				RSSI:      r.RSSI,
				LocalName: name,
				CompanyID: md.CompanyID,
				Data:      append([]byte(nil), md.Data...),
				SeenAt:    time.Now(),
			})
			return
		}
	})

	if ctx.Err() != nil {
		l.logger.Info("ble: scanning stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}
	return nil
}

func (f Filter) accepts(companyID uint16, data []byte) bool {
	if f.CompanyID != 0 && companyID != f.CompanyID {
		return false
	}
	return bytes.HasPrefix(data, f.ManufacturerDataPref)
}
