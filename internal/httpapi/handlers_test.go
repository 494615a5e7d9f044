package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloudpico-baro/internal/baro"
	"cloudpico-baro/internal/config"
	"cloudpico-baro/internal/params"
)

type fakeState struct {
	snap baro.Snapshot
	at   time.Time
	ok   bool
}

func (f *fakeState) Latest() (baro.Snapshot, time.Time, bool) { return f.snap, f.at, f.ok }

type fakeHistory struct {
	cals      []params.Calibration
	err       error
	lastLimit int
}

func (f *fakeHistory) RecentCalibrations(limit int) ([]params.Calibration, error) {
	f.lastLimit = limit
	return f.cals, f.err
}

type fakeCalibrator struct {
	pending bool
	full    bool
}

func (f *fakeCalibrator) RequestCalibration(full bool) bool {
	if f.pending {
		return false
	}
	f.pending, f.full = true, full
	return true
}

func healthySnapshot() baro.Snapshot {
	snap := baro.Snapshot{Primary: 0, NumInstances: 1, AllHealthy: true, EAS2TAS: 1, AirDensityRatio: 1}
	snap.Instances[0] = baro.InstanceSnapshot{
		Index: 0, Backend: "sim", Pressure: 101325, Temperature: 15,
		Health: baro.Health{SensorHealthy: true, AltitudeValid: true, Calibrated: true},
		State:  baro.Calibrated,
	}
	return snap
}

func newTestServer(t *testing.T, d Deps) *httptest.Server {
	t.Helper()

	srv := NewServer(config.Config{HTTPAddr: ":0"}, NewMux(d))
	ts := httptest.NewServer(srv.Handler)

	t.Cleanup(ts.Close)
	return ts
}

func mustDo[T any](t *testing.T, client *http.Client, method, url string, out *T) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	degraded := healthySnapshot()
	degraded.AllHealthy = false

	tests := []struct {
		name       string
		state      *fakeState
		wantStatus int
		wantBody   string
	}{
		{name: "no data", state: &fakeState{}, wantStatus: http.StatusServiceUnavailable, wantBody: "starting"},
		{name: "degraded", state: &fakeState{snap: degraded, ok: true}, wantStatus: http.StatusServiceUnavailable, wantBody: "degraded"},
		{name: "healthy", state: &fakeState{snap: healthySnapshot(), ok: true}, wantStatus: http.StatusOK, wantBody: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Deps{State: tt.state})

			var body map[string]string
			resp := mustDo(t, ts.Client(), http.MethodGet, ts.URL+"/healthz", &body)

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status=%d want=%d", resp.StatusCode, tt.wantStatus)
			}
			if body["status"] != tt.wantBody {
				t.Fatalf("body.status=%q want=%q", body["status"], tt.wantBody)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	at := time.Now().Add(-10 * time.Second)
	ts := newTestServer(t, Deps{VehicleID: "uav-1", State: &fakeState{snap: healthySnapshot(), at: at, ok: true}})

	var body map[string]any
	resp := mustDo(t, ts.Client(), http.MethodGet, ts.URL+"/api/baro", &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if body["vehicle_id"] != "uav-1" {
		t.Errorf("vehicle_id=%v want=uav-1", body["vehicle_id"])
	}
	if body["updated_ago"] != "10 seconds ago" {
		t.Errorf("updated_ago=%v want=%q", body["updated_ago"], "10 seconds ago")
	}
	instances, ok := body["instances"].([]any)
	if !ok || len(instances) != 1 {
		t.Fatalf("instances=%v want one entry", body["instances"])
	}
	inst := instances[0].(map[string]any)
	if inst["kind"] != "air" || inst["calibration"] != "calibrated" {
		t.Errorf("instance=%v", inst)
	}
}

func TestStatus_NoData(t *testing.T) {
	ts := newTestServer(t, Deps{State: &fakeState{}})

	var body map[string]any
	resp := mustDo(t, ts.Client(), http.MethodGet, ts.URL+"/api/baro", &body)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestCalibrations(t *testing.T) {
	hist := &fakeHistory{cals: []params.Calibration{{
		At: time.Now().Add(-2 * time.Hour), Instance: 0, Kind: "air", Succeeded: true,
		Samples: 5, Pressure: 101325, Temperature: 15, Duration: 1500 * time.Millisecond,
	}}}
	ts := newTestServer(t, Deps{State: &fakeState{}, History: hist})

	var body struct {
		Limit int               `json:"limit"`
		Items []calibrationItem `json:"items"`
	}
	resp := mustDo(t, ts.Client(), http.MethodGet, ts.URL+"/api/baro/calibrations?limit=5", &body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if hist.lastLimit != 5 || body.Limit != 5 {
		t.Fatalf("limit: store=%d body=%d want 5", hist.lastLimit, body.Limit)
	}
	if len(body.Items) != 1 {
		t.Fatalf("items=%d want 1", len(body.Items))
	}
	it := body.Items[0]
	if it.Ago != "2 hours ago" {
		t.Errorf("ago=%q want %q", it.Ago, "2 hours ago")
	}
	if it.PressureHPa != "1,013.25" {
		t.Errorf("hpa=%q want %q", it.PressureHPa, "1,013.25")
	}
	if it.Took != "1.5s" {
		t.Errorf("took=%q want 1.5s", it.Took)
	}
}

func TestCalibrations_BadLimit(t *testing.T) {
	ts := newTestServer(t, Deps{State: &fakeState{}, History: &fakeHistory{}})

	for _, q := range []string{"abc", "0", "-1", "501"} {
		t.Run(q, func(t *testing.T) {
			var body map[string]any
			resp := mustDo(t, ts.Client(), http.MethodGet, ts.URL+"/api/baro/calibrations?limit="+q, &body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestCalibrations_StoreError(t *testing.T) {
	ts := newTestServer(t, Deps{State: &fakeState{}, History: &fakeHistory{err: errors.New("disk")}})

	var body map[string]any
	resp := mustDo(t, ts.Client(), http.MethodGet, ts.URL+"/api/baro/calibrations", &body)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusInternalServerError)
	}
}

func TestCalibrate(t *testing.T) {
	cal := &fakeCalibrator{}
	ts := newTestServer(t, Deps{State: &fakeState{}, Calibrator: cal})

	var body map[string]any
	resp := mustDo(t, ts.Client(), http.MethodPost, ts.URL+"/api/baro/calibrate", &body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusAccepted)
	}

	if !cal.full || body["mode"] != "full" {
		t.Fatalf("full=%v mode=%v, want full", cal.full, body["mode"])
	}

	resp = mustDo(t, ts.Client(), http.MethodPost, ts.URL+"/api/baro/calibrate", &body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second status=%d want=%d", resp.StatusCode, http.StatusConflict)
	}
}

func TestCalibrate_Modes(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantFull   bool
	}{
		{query: "?mode=quick", wantStatus: http.StatusAccepted, wantFull: false},
		{query: "?mode=full", wantStatus: http.StatusAccepted, wantFull: true},
		{query: "?mode=slow", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			cal := &fakeCalibrator{}
			ts := newTestServer(t, Deps{State: &fakeState{}, Calibrator: cal})

			var body map[string]any
			resp := mustDo(t, ts.Client(), http.MethodPost, ts.URL+"/api/baro/calibrate"+tt.query, &body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status=%d want=%d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusAccepted && cal.full != tt.wantFull {
				t.Fatalf("full=%v want=%v", cal.full, tt.wantFull)
			}
		})
	}
}

func TestOptionalRoutesAbsent(t *testing.T) {
	ts := newTestServer(t, Deps{State: &fakeState{}})

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusNotFound)
	}
}
