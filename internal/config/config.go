// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/relabs-tech/imu_rs485/internal/imu"
)

// DefaultPath is where the tools look for their configuration file.
const DefaultPath = "./imu_config.txt"

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicIMU    string
	TopicPose   string
	TopicStatus string

	// Serial link
	IMUSerialPort string
	IMUBaudRate   int
	IMURS485      bool

	// Register read
	IMUAddress       byte
	IMUStartRegister uint16
	IMULayout        string
	// IMUAccelDivisor converts raw acceleration words to G. It depends on
	// the device's full-scale setting: 1000 for the 6-register motion
	// read, 1024 or 2048 (32768/16) on other firmware ranges.
	IMUAccelDivisor float64
	IMUFilterWindow int

	// Timing, milliseconds
	IMUPollInterval    int
	IMUResponseTimeout int
	IMUCommandSettle   int

	// FailureLogRate caps cycle failure warnings per second (0 = no cap).
	FailureLogRate float64

	// Calibration
	CalibrationSamples   int
	CalibrationTimeoutMS int

	// Servers
	WebServerPort int
	MetricsAddr   string

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Package-level unexported variables for the singleton:
//   - globalConfig is only reachable through InitGlobal and Get.
//   - configOnce makes InitGlobal run once even if called repeatedly.
//   - configErr keeps the outcome of that run for later callers.
//   - configMu guards globalConfig; Get takes the read lock.
var (
	globalConfig *Config
	configErr    error
	configOnce   sync.Once
	configMu     sync.RWMutex
)

var defaults = map[string]any{
	"MQTT_BROKER":             "tcp://localhost:1883",
	"MQTT_CLIENT_ID_PRODUCER": "imu-producer",
	"MQTT_CLIENT_ID_CONSOLE":  "imu-console-subscriber",
	"MQTT_CLIENT_ID_WEB":      "imu-web-subscriber",

	"TOPIC_IMU":    "imu/sample",
	"TOPIC_POSE":   "imu/pose",
	"TOPIC_STATUS": "imu/status",

	"IMU_SERIAL_PORT": "/dev/ttyUSB0",
	"IMU_BAUD_RATE":   "230400",
	"IMU_RS485":       "false",

	"IMU_ADDRESS":        "0x50",
	"IMU_START_REGISTER": "0x30",
	"IMU_LAYOUT":         imu.LayoutMotion.Name,
	"IMU_ACCEL_DIVISOR":  "1000",
	"IMU_FILTER_WINDOW":  "10",

	"IMU_POLL_INTERVAL":    "50",
	"IMU_RESPONSE_TIMEOUT": "100",
	"IMU_COMMAND_SETTLE":   "500",
	"FAILURE_LOG_RATE":     "1",

	"CALIBRATION_SAMPLES":    "50",
	"CALIBRATION_TIMEOUT_MS": "30000",

	"WEB_SERVER_PORT": "8080",
	"METRICS_ADDR":    ":9100",

	"LOG_LEVEL":        "info",
	"LOG_FORMAT":       "console",
	"LOG_FILE":         "",
	"LOG_MAX_SIZE_MB":  "100",
	"LOG_MAX_BACKUPS":  "7",
	"LOG_MAX_AGE_DAYS": "30",
}

// Keys lists every recognised configuration key.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads a KEY=VALUE file (# comments allowed). Missing keys take their
// defaults and environment variables with the same name override the file.
// An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if configPath != "" {
		if err := checkKeys(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := cfg.fill(v); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkKeys rejects keys the application does not know. It uses a separate
// viper instance so defaults do not hide typos.
func checkKeys(path string) error {
	f := viper.New()
	f.SetConfigType("env")
	f.SetConfigFile(path)
	if err := f.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	for _, k := range f.AllKeys() {
		if _, ok := defaults[strings.ToUpper(k)]; !ok {
			return fmt.Errorf("unknown config key: %q", strings.ToUpper(k))
		}
	}
	return nil
}

func (c *Config) fill(v *viper.Viper) error {
	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	var errs []string
	integer := func(key string) int {
		n, err := strconv.Atoi(str(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s %q", key, str(key)))
		}
		return n
	}
	float := func(key string) float64 {
		f, err := strconv.ParseFloat(str(key), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s %q", key, str(key)))
		}
		return f
	}
	boolean := func(key string) bool {
		b, err := strconv.ParseBool(str(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s %q", key, str(key)))
		}
		return b
	}
	unsigned := func(key string, bits int) uint64 {
		u, err := strconv.ParseUint(str(key), 0, bits)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s %q (decimal or 0x hex, %d bits)", key, str(key), bits))
		}
		return u
	}

	c.MQTTBroker = str("MQTT_BROKER")
	c.MQTTClientIDProducer = str("MQTT_CLIENT_ID_PRODUCER")
	c.MQTTClientIDConsole = str("MQTT_CLIENT_ID_CONSOLE")
	c.MQTTClientIDWeb = str("MQTT_CLIENT_ID_WEB")

	c.TopicIMU = str("TOPIC_IMU")
	c.TopicPose = str("TOPIC_POSE")
	c.TopicStatus = str("TOPIC_STATUS")

	c.IMUSerialPort = str("IMU_SERIAL_PORT")
	c.IMUBaudRate = integer("IMU_BAUD_RATE")
	c.IMURS485 = boolean("IMU_RS485")

	c.IMUAddress = byte(unsigned("IMU_ADDRESS", 8))
	c.IMUStartRegister = uint16(unsigned("IMU_START_REGISTER", 16))
	c.IMULayout = str("IMU_LAYOUT")
	c.IMUAccelDivisor = float("IMU_ACCEL_DIVISOR")
	c.IMUFilterWindow = integer("IMU_FILTER_WINDOW")

	c.IMUPollInterval = integer("IMU_POLL_INTERVAL")
	c.IMUResponseTimeout = integer("IMU_RESPONSE_TIMEOUT")
	c.IMUCommandSettle = integer("IMU_COMMAND_SETTLE")
	c.FailureLogRate = float("FAILURE_LOG_RATE")

	c.CalibrationSamples = integer("CALIBRATION_SAMPLES")
	c.CalibrationTimeoutMS = integer("CALIBRATION_TIMEOUT_MS")

	c.WebServerPort = integer("WEB_SERVER_PORT")
	c.MetricsAddr = str("METRICS_ADDR")

	c.LogLevel = str("LOG_LEVEL")
	c.LogFormat = str("LOG_FORMAT")
	c.LogFile = str("LOG_FILE")
	c.LogMaxSizeMB = integer("LOG_MAX_SIZE_MB")
	c.LogMaxBackups = integer("LOG_MAX_BACKUPS")
	c.LogMaxAgeDays = integer("LOG_MAX_AGE_DAYS")

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validate checks ranges and required fields.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.IMUBaudRate <= 0 {
		return fmt.Errorf("IMU_BAUD_RATE must be positive, got %d", c.IMUBaudRate)
	}
	if _, err := imu.LayoutByName(c.IMULayout); err != nil {
		return fmt.Errorf("IMU_LAYOUT: %w", err)
	}
	if c.IMUAccelDivisor <= 0 {
		return fmt.Errorf("IMU_ACCEL_DIVISOR must be positive, got %g", c.IMUAccelDivisor)
	}
	if c.IMUFilterWindow < 1 {
		return fmt.Errorf("IMU_FILTER_WINDOW must be at least 1, got %d", c.IMUFilterWindow)
	}
	if c.IMUPollInterval < 0 {
		return fmt.Errorf("IMU_POLL_INTERVAL must not be negative, got %d", c.IMUPollInterval)
	}
	if c.IMUResponseTimeout <= 0 {
		return fmt.Errorf("IMU_RESPONSE_TIMEOUT must be positive, got %d", c.IMUResponseTimeout)
	}
	if c.IMUCommandSettle < 0 {
		return fmt.Errorf("IMU_COMMAND_SETTLE must not be negative, got %d", c.IMUCommandSettle)
	}
	if c.FailureLogRate < 0 {
		return fmt.Errorf("FAILURE_LOG_RATE must not be negative, got %g", c.FailureLogRate)
	}
	if c.CalibrationSamples < 1 {
		return fmt.Errorf("CALIBRATION_SAMPLES must be at least 1, got %d", c.CalibrationSamples)
	}
	if c.CalibrationTimeoutMS <= 0 {
		return fmt.Errorf("CALIBRATION_TIMEOUT_MS must be positive, got %d", c.CalibrationTimeoutMS)
	}
	if c.WebServerPort < 1 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// Layout returns the configured register layout.
func (c *Config) Layout() imu.Layout {
	l, err := imu.LayoutByName(c.IMULayout)
	if err != nil {
		return imu.LayoutMotion
	}
	return l
}

// Decoder returns a register decoder for the configured layout and divisor.
func (c *Config) Decoder() imu.Decoder {
	return imu.NewDecoder(c.Layout(), c.IMUAccelDivisor)
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.IMUPollInterval) * time.Millisecond
}

func (c *Config) ResponseTimeout() time.Duration {
	return time.Duration(c.IMUResponseTimeout) * time.Millisecond
}

func (c *Config) CommandSettle() time.Duration {
	return time.Duration(c.IMUCommandSettle) * time.Millisecond
}

func (c *Config) CalibrationTimeout() time.Duration {
	return time.Duration(c.CalibrationTimeoutMS) * time.Millisecond
}

// InitGlobal initializes the global configuration from file. It only runs
// once; later calls return the first result, including a failure.
func InitGlobal(configPath string) error {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, configErr = Load(configPath)
	})
	return configErr
}

// Get returns the global configuration, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
