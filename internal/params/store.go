// Package params persists the barometer configuration and calibration
// history in SQLite.
package params

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloudpico-baro/internal/baro"
)

//go:embed sql/load-params.sql
var loadParamsSQL string

//go:embed sql/load-ground.sql
var loadGroundSQL string

//go:embed sql/upsert-params.sql
var upsertParamsSQL string

//go:embed sql/upsert-ground.sql
var upsertGroundSQL string

//go:embed sql/insert-calibration.sql
var insertCalibrationSQL string

//go:embed sql/recent-calibrations.sql
var recentCalibrationsSQL string

// Calibration is a stored calibration outcome.
type Calibration struct {
	At          time.Time     `json:"at"`
	Instance    int           `json:"instance"`
	Kind        string        `json:"kind"`
	Succeeded   bool          `json:"succeeded"`
	Samples     int           `json:"samples"`
	Pressure    float64       `json:"ground_pressure_pa"`
	Temperature float64       `json:"ground_temperature_c"`
	Duration    time.Duration `json:"duration_ns"`
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ baro.ParamStore          = (*Store)(nil)
	_ baro.CalibrationRecorder = (*Store)(nil)
)

// NewStore returns a store on a migrated database.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Load returns the persisted parameters, or the defaults on a fresh
// database.
func (s *Store) Load() (baro.Params, error) {
	p := baro.DefaultParams()

	var reset int
	err := s.db.QueryRow(loadParamsSQL).Scan(&p.Primary, &p.AltOffset, &p.SpecificGravity, &p.BasePressure, &reset)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Info("no stored barometer parameters, using defaults")
	case err != nil:
		return baro.Params{}, fmt.Errorf("load params: %w", err)
	}
	p.ResetBasePressure = reset != 0

	rows, err := s.db.Query(loadGroundSQL)
	if err != nil {
		return baro.Params{}, fmt.Errorf("load ground references: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close ground rows", "error", err)
		}
	}()
	for rows.Next() {
		var i int
		var g baro.GroundReference
		if err := rows.Scan(&i, &g.Pressure, &g.Temperature); err != nil {
			return baro.Params{}, fmt.Errorf("scan ground reference: %w", err)
		}
		if i < 0 || i >= baro.MaxInstances {
			s.logger.Warn("ignoring ground reference for unknown instance", "instance", i)
			continue
		}
		p.Ground[i] = g
	}
	if err := rows.Err(); err != nil {
		return baro.Params{}, fmt.Errorf("load ground references: %w", err)
	}
	return p, nil
}

// Save writes p in a single transaction.
func (s *Store) Save(p baro.Params) error {
	ts := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		// no-op after Commit
		_ = tx.Rollback()
	}()

	reset := 0
	if p.ResetBasePressure {
		reset = 1
	}
	if _, err := tx.Exec(upsertParamsSQL, p.Primary, p.AltOffset, p.SpecificGravity, p.BasePressure, reset, ts); err != nil {
		return fmt.Errorf("save params: %w", err)
	}
	for i, g := range p.Ground {
		if g.Pressure == 0 {
			continue
		}
		if _, err := tx.Exec(upsertGroundSQL, i, g.Pressure, g.Temperature, ts); err != nil {
			return fmt.Errorf("save ground reference %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("saved barometer parameters", "primary", p.Primary, "base_pressure", p.BasePressure)
	return nil
}

// RecordCalibration appends a calibration outcome to the history.
func (s *Store) RecordCalibration(rec baro.CalibrationRecord) error {
	_, err := s.db.Exec(insertCalibrationSQL,
		s.now().UTC().Format(time.RFC3339Nano),
		rec.Instance,
		rec.Kind.String(),
		rec.Succeeded,
		rec.Samples,
		rec.Pressure,
		rec.Temperature,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record calibration: %w", err)
	}
	return nil
}

// RecentCalibrations returns up to limit calibrations, newest first.
func (s *Store) RecentCalibrations(limit int) ([]Calibration, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(recentCalibrationsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("recent calibrations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close calibration rows", "error", err)
		}
	}()

	out := []Calibration{}
	for rows.Next() {
		var c Calibration
		var ts string
		var durMs int64
		if err := rows.Scan(&ts, &c.Instance, &c.Kind, &c.Succeeded, &c.Samples, &c.Pressure, &c.Temperature, &durMs); err != nil {
			return nil, fmt.Errorf("scan calibration: %w", err)
		}
		c.At, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse calibration time %q: %w", ts, err)
		}
		c.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}
