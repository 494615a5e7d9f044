package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"cloudpico-baro/internal/baro"
)

const (
	defaultCalibrationLimit = 20
	maxCalibrationLimit     = 500
)

type handlers struct {
	deps Deps
	now  func() time.Time
}

type statusResponse struct {
	VehicleID       string                  `json:"vehicle_id"`
	Updated         time.Time               `json:"updated"`
	UpdatedAgo      string                  `json:"updated_ago"`
	Primary         int                     `json:"primary"`
	AllHealthy      bool                    `json:"all_healthy"`
	EAS2TAS         float64                 `json:"eas2tas"`
	AirDensityRatio float64                 `json:"air_density_ratio"`
	DriftOffset     float64                 `json:"drift_offset_m"`
	Instances       []baro.InstanceSnapshot `json:"instances"`
}

type calibrationItem struct {
	At          time.Time `json:"at"`
	Ago         string    `json:"ago"`
	Instance    int       `json:"instance"`
	Kind        string    `json:"kind"`
	Succeeded   bool      `json:"succeeded"`
	Samples     int       `json:"samples"`
	Pressure    float64   `json:"ground_pressure_pa"`
	PressureHPa string    `json:"ground_pressure_hpa"`
	Temperature float64   `json:"ground_temperature_c"`
	Took        string    `json:"took"`
}

func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := h.deps.State.Latest()
	switch {
	case !ok:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
	case !snap.AllHealthy:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, at, ok := h.deps.State.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no barometer data yet")
		return
	}
	writeJSON(w, http.StatusOK, h.status(snap, at))
}

func (h *handlers) status(snap baro.Snapshot, at time.Time) statusResponse {
	return statusResponse{
		VehicleID:       h.deps.VehicleID,
		Updated:         at.UTC(),
		UpdatedAgo:      humanize.RelTime(at, h.now(), "ago", "from now"),
		Primary:         snap.Primary,
		AllHealthy:      snap.AllHealthy,
		EAS2TAS:         snap.EAS2TAS,
		AirDensityRatio: snap.AirDensityRatio,
		DriftOffset:     snap.DriftOffset,
		Instances:       append([]baro.InstanceSnapshot(nil), snap.Active()...),
	}
}

func (h *handlers) handleCalibrations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cals, err := h.deps.History.RecentCalibrations(limit)
	if err != nil {
		slog.Error("failed to load calibration history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load calibration history")
		return
	}

	now := h.now()
	items := make([]calibrationItem, 0, len(cals))
	for _, c := range cals {
		items = append(items, calibrationItem{
			At:          c.At.UTC(),
			Ago:         humanize.RelTime(c.At, now, "ago", "from now"),
			Instance:    c.Instance,
			Kind:        c.Kind,
			Succeeded:   c.Succeeded,
			Samples:     c.Samples,
			Pressure:    c.Pressure,
			PressureHPa: humanize.FormatFloat("#,###.##", c.Pressure/100),
			Temperature: c.Temperature,
			Took:        c.Duration.Round(time.Millisecond).String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"limit": limit,
		"items": items,
	})
}

// handleCalibrate queues a full calibration, or a quick ground update with
// ?mode=quick.
func (h *handlers) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", "full":
		mode = "full"
	case "quick":
	default:
		writeError(w, http.StatusBadRequest, "invalid 'mode' (allowed: full, quick)")
		return
	}
	if !h.deps.Calibrator.RequestCalibration(mode == "full") {
		writeError(w, http.StatusConflict, "calibration already pending")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "mode": mode})
}

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultCalibrationLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > maxCalibrationLimit {
		return 0, errors.New("'limit' must be <= 500")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}
