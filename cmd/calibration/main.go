// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided calibration for the RS-485 IMU.
//
// Steps, each confirmed at the terminal:
//  1. Reset the angle reference.
//  2. Capture accelerometer samples through the poll loop and compute the bias.
//  3. Run the device's own accelerometer calibration.
//  4. Bracket a magnetic field calibration while the operator rotates the sensor.
//
// The resulting report is printed as JSON. Nothing is written to the device's
// flash and nothing is stored on disk.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/app"
	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/logging"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup, logger.Sync included,
// happens before the process exits.
func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file")
	mock := flag.Bool("mock", false, "calibrate a simulated device instead of the serial port")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	cfg := config.Get()

	logger := logging.InitLogger(logging.FromConfig(cfg))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, cfg, logger, *mock, os.Stdin, os.Stdout); err != nil {
		logger.Error("calibration failed", zap.Error(err))
		return 1
	}
	return 0
}
