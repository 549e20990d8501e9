// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_rs485/internal/imu"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imu_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# nothing but a comment\n"))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, byte(0x50), cfg.IMUAddress)
	assert.Equal(t, uint16(0x30), cfg.IMUStartRegister)
	assert.Equal(t, 230400, cfg.IMUBaudRate)
	assert.Equal(t, 1000.0, cfg.IMUAccelDivisor)
	assert.Equal(t, 10, cfg.IMUFilterWindow)
	assert.Equal(t, imu.LayoutMotion, cfg.Layout())
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.ResponseTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.CommandSettle())
	assert.Equal(t, 30*time.Second, cfg.CalibrationTimeout())
	assert.False(t, cfg.IMURS485)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
# device
IMU_SERIAL_PORT=/dev/ttyAMA0
IMU_BAUD_RATE=9600
IMU_RS485=true
IMU_ADDRESS=0x51
IMU_START_REGISTER=52
IMU_LAYOUT=full
IMU_ACCEL_DIVISOR=2048
IMU_FILTER_WINDOW=50

TOPIC_IMU=lab/imu
LOG_FORMAT=json
CALIBRATION_SAMPLES=25
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyAMA0", cfg.IMUSerialPort)
	assert.Equal(t, 9600, cfg.IMUBaudRate)
	assert.True(t, cfg.IMURS485)
	assert.Equal(t, byte(0x51), cfg.IMUAddress)
	assert.Equal(t, uint16(52), cfg.IMUStartRegister)
	assert.Equal(t, imu.LayoutFull, cfg.Layout())
	assert.Equal(t, 2048.0, cfg.Decoder().AccelDivisor)
	assert.Equal(t, 50, cfg.IMUFilterWindow)
	assert.Equal(t, "lab/imu", cfg.TopicIMU)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 25, cfg.CalibrationSamples)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("IMU_SERIAL_PORT", "/dev/ttyUSB7")
	cfg, err := Load(writeConfig(t, "IMU_SERIAL_PORT=/dev/ttyUSB0\n"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB7", cfg.IMUSerialPort)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "unknown key", body: "IMU_SPI_DEVICE=/dev/spidev0.0\n", msg: `unknown config key: "IMU_SPI_DEVICE"`},
		{name: "address overflow", body: "IMU_ADDRESS=0x150\n", msg: "invalid IMU_ADDRESS"},
		{name: "bad baud", body: "IMU_BAUD_RATE=fast\n", msg: "invalid IMU_BAUD_RATE"},
		{name: "zero divisor", body: "IMU_ACCEL_DIVISOR=0\n", msg: "IMU_ACCEL_DIVISOR must be positive"},
		{name: "empty window", body: "IMU_FILTER_WINDOW=0\n", msg: "IMU_FILTER_WINDOW must be at least 1"},
		{name: "unknown layout", body: "IMU_LAYOUT=quaternion\n", msg: "IMU_LAYOUT"},
		{name: "bad log format", body: "LOG_FORMAT=xml\n", msg: "LOG_FORMAT must be console or json"},
		{name: "bad port", body: "WEB_SERVER_PORT=70000\n", msg: "WEB_SERVER_PORT must be 1-65535"},
		{name: "bad bool", body: "IMU_RS485=maybe\n", msg: "invalid IMU_RS485"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestKeysCoverDefaults(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "IMU_ACCEL_DIVISOR")
	assert.Contains(t, keys, "CALIBRATION_SAMPLES")
	assert.IsIncreasing(t, keys)
}

// resetGlobal gives a test a fresh singleton and restores an empty one after.
func resetGlobal(t *testing.T) {
	t.Helper()
	reset := func() {
		configOnce = sync.Once{}
		globalConfig, configErr = nil, nil
	}
	reset()
	t.Cleanup(reset)
}

func TestInitGlobal(t *testing.T) {
	resetGlobal(t)
	path := writeConfig(t, "TOPIC_POSE=test/pose\n")
	require.NoError(t, InitGlobal(path))
	require.NotNil(t, Get())
	assert.Equal(t, "test/pose", Get().TopicPose)

	// later calls keep the first configuration
	require.NoError(t, InitGlobal(writeConfig(t, "TOPIC_POSE=other\n")))
	assert.Equal(t, "test/pose", Get().TopicPose)
}

func TestInitGlobalKeepsFirstError(t *testing.T) {
	resetGlobal(t)
	missing := filepath.Join(t.TempDir(), "missing.txt")

	first := InitGlobal(missing)
	require.Error(t, first)
	assert.Nil(t, Get())

	// a later call with a good file does not hide the failure
	again := InitGlobal(writeConfig(t, "TOPIC_POSE=test/pose\n"))
	require.Error(t, again)
	assert.Equal(t, first, again)
	assert.Nil(t, Get())
}
