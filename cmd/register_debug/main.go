// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/app"
	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file")
	mock := flag.Bool("mock", false, "dump factory defaults instead of reading the device")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	cfg := config.Get()

	logger := logging.InitLogger(logging.FromConfig(cfg))
	defer logger.Sync()

	if err := app.RunRegisterDebug(cfg, logger, *mock, os.Stdout); err != nil {
		logger.Error("register dump failed", zap.Error(err))
		return 1
	}
	return 0
}
