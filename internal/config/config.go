package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted in BARO_BACKENDS.
const (
	BackendSim    = "sim"
	BackendBMXX80 = "bmxx80"
	BackendBLE    = "ble"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	// BaroLogLevel applies to the frontend and backends; defaults to LogLevel.
	BaroLogLevel slog.Level
	HTTPAddr     string

	SQLitePath string
	SQLiteDSN  string

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
	VehicleID       string

	Backends []string
	// Primary overrides the persisted primary instance when >= 0.
	Primary            int
	UpdateInterval     time.Duration
	AccumulateInterval time.Duration
	StaleAfter         time.Duration
	CalibrationTimeout time.Duration
	CalibrationSamples int
	TelemetryInterval  time.Duration
	CalibrateOnStartup bool

	// SpecificGravity overrides the persisted fluid specific gravity when > 0.
	SpecificGravity   float64
	ResetBasePressure bool

	BME280Address uint16
	BME280Kind    string
	BLEAdapter    string
	BLEDeviceID   uint32 // 0 accepts any station

	SimInstances      int
	SimKind           string
	SimGroundPressure float64
	SimClimbRate      float64
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	baroLevel := level
	if s := strings.TrimSpace(os.Getenv("BARO_LOG_LEVEL")); s != "" {
		baroLevel, err = parseLogLevel(s)
		if err != nil {
			return Config{}, fmt.Errorf("BARO_LOG_LEVEL: %w", err)
		}
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if sqlitePath == "" {
		sqlitePath = "data/barod.db"
	}
	sqliteDSN := strings.TrimSpace(os.Getenv("DB_DSN"))

	mqttEnabled, err := envBool("MQTT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "barod"
	}

	topicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if topicPrefix == "" {
		topicPrefix = "vehicles"
	}

	vehicleID := strings.TrimSpace(os.Getenv("VEHICLE_ID"))
	if vehicleID == "" {
		vehicleID = "default"
	}

	backends, err := parseBackends(os.Getenv("BARO_BACKENDS"))
	if err != nil {
		return Config{}, err
	}

	primary := -1
	if s := strings.TrimSpace(os.Getenv("BARO_PRIMARY")); s != "" {
		primary, err = strconv.Atoi(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BARO_PRIMARY %q: %w", s, err)
		}
		if primary < 0 {
			return Config{}, fmt.Errorf("BARO_PRIMARY must not be negative, got %d", primary)
		}
	}

	updateInterval, err := envDuration("BARO_UPDATE_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	accumulateInterval, err := envDuration("BARO_ACCUMULATE_INTERVAL", 20*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	staleAfter, err := envDuration("BARO_STALE_AFTER", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	calibrationTimeout, err := envDuration("BARO_CALIBRATION_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	telemetryInterval, err := envDuration("TELEMETRY_INTERVAL", time.Second)
	if err != nil {
		return Config{}, err
	}

	calSamplesStr := strings.TrimSpace(os.Getenv("BARO_CALIBRATION_SAMPLES"))
	if calSamplesStr == "" {
		calSamplesStr = "5"
	}
	calSamples, err := strconv.Atoi(calSamplesStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BARO_CALIBRATION_SAMPLES %q: %w", calSamplesStr, err)
	}
	if calSamples <= 0 {
		return Config{}, fmt.Errorf("BARO_CALIBRATION_SAMPLES must be positive, got %d", calSamples)
	}

	calibrateOnStartup, err := envBool("BARO_CALIBRATE_ON_STARTUP", true)
	if err != nil {
		return Config{}, err
	}

	specificGravity, err := envFloat("BARO_SPECIFIC_GRAVITY", 0)
	if err != nil {
		return Config{}, err
	}
	if specificGravity < 0 {
		return Config{}, fmt.Errorf("BARO_SPECIFIC_GRAVITY must not be negative, got %v", specificGravity)
	}
	resetBasePressure, err := envBool("BARO_RESET_BASE_PRESSURE", false)
	if err != nil {
		return Config{}, err
	}

	bme280Kind, err := envKind("BME280_KIND")
	if err != nil {
		return Config{}, err
	}
	simKind, err := envKind("SIM_KIND")
	if err != nil {
		return Config{}, err
	}

	bme280AddressStr := strings.TrimSpace(os.Getenv("BME280_ADDRESS"))
	if bme280AddressStr == "" {
		bme280AddressStr = "0x76"
	}
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}

	bleAdapter := strings.TrimSpace(os.Getenv("BLE_ADAPTER"))
	if bleAdapter == "" {
		bleAdapter = "hci0"
	}
	bleDeviceIDStr := strings.TrimSpace(os.Getenv("BLE_DEVICE_ID"))
	if bleDeviceIDStr == "" {
		bleDeviceIDStr = "0"
	}
	bleDeviceID, err := strconv.ParseUint(bleDeviceIDStr, 0, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BLE_DEVICE_ID %q: %w", bleDeviceIDStr, err)
	}

	simInstancesStr := strings.TrimSpace(os.Getenv("SIM_INSTANCES"))
	if simInstancesStr == "" {
		simInstancesStr = "1"
	}
	simInstances, err := strconv.Atoi(simInstancesStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SIM_INSTANCES %q: %w", simInstancesStr, err)
	}
	if simInstances < 1 {
		return Config{}, fmt.Errorf("SIM_INSTANCES must be at least 1, got %d", simInstances)
	}

	simGround, err := envFloat("SIM_GROUND_PRESSURE", 101325)
	if err != nil {
		return Config{}, err
	}
	if simGround <= 0 {
		return Config{}, fmt.Errorf("SIM_GROUND_PRESSURE must be positive, got %v", simGround)
	}
	simClimb, err := envFloat("SIM_CLIMB_RATE", 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		BaroLogLevel:       baroLevel,
		HTTPAddr:           httpAddr,
		SQLitePath:         sqlitePath,
		SQLiteDSN:          sqliteDSN,
		MQTTEnabled:        mqttEnabled,
		MQTTBroker:         mqttBroker,
		MQTTPort:           mqttPort,
		MQTTClientID:       mqttClientID,
		MQTTTopicPrefix:    topicPrefix,
		VehicleID:          vehicleID,
		Backends:           backends,
		Primary:            primary,
		UpdateInterval:     updateInterval,
		AccumulateInterval: accumulateInterval,
		StaleAfter:         staleAfter,
		CalibrationTimeout: calibrationTimeout,
		CalibrationSamples: calSamples,
		TelemetryInterval:  telemetryInterval,
		CalibrateOnStartup: calibrateOnStartup,
		SpecificGravity:    specificGravity,
		ResetBasePressure:  resetBasePressure,
		BME280Address:      uint16(bme280Address),
		BME280Kind:         bme280Kind,
		BLEAdapter:         bleAdapter,
		BLEDeviceID:        uint32(bleDeviceID),
		SimInstances:       simInstances,
		SimKind:            simKind,
		SimGroundPressure:  simGround,
		SimClimbRate:       simClimb,
	}, nil
}

func parseBackends(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{BackendSim}, nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		switch name {
		case BackendSim, BackendBMXX80, BackendBLE:
		default:
			return nil, fmt.Errorf("invalid BARO_BACKENDS entry %q (allowed: sim, bmxx80, ble)", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate BARO_BACKENDS entry %q", name)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("BARO_BACKENDS %q names no backend", s)
	}
	return out, nil
}

// envKind reads a sensor kind: air (default) or liquid.
func envKind(key string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch s {
	case "":
		return "air", nil
	case "air", "liquid":
		return s, nil
	default:
		return "", fmt.Errorf("invalid %s %q (allowed: air, liquid)", key, s)
	}
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
