// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/httpserver"
	"github.com/relabs-tech/imu_rs485/internal/metrics"
)

// RunIMUProducer polls the device and publishes samples, poses and cycle
// status over MQTT until ctx is cancelled or the link fails. Metrics,
// health and calibration endpoints are served on cfg.MetricsAddr.
func RunIMUProducer(ctx context.Context, cfg *config.Config, logger *zap.Logger, mock bool) error {
	logger.Info("starting imu producer",
		zap.String("layout", cfg.IMULayout),
		zap.Int("poll_interval_ms", cfg.IMUPollInterval),
	)

	dev, err := openDevice(cfg, mock, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	reg := metrics.NewRegistry()
	pm := metrics.NewPollMetrics(reg)

	loop := newLoop(cfg, dev, logger)
	ctrl := newController(cfg, loop, pm, logger)
	loop.Subscribe(pm)
	loop.Subscribe(NewSamplePublisher(client, Topics{
		Sample: cfg.TopicIMU,
		Pose:   cfg.TopicPose,
		Status: cfg.TopicStatus,
	}, logger, func(error) { pm.PublishErrors.Inc() }))

	srv := httpserver.New(cfg.MetricsAddr, metrics.Handler(reg), loop.Running)
	(&calibrationRoutes{
		ctrl:    ctrl,
		loop:    loop,
		samples: cfg.CalibrationSamples,
		logger:  logger,
	}).register(srv.Engine())
	go func() {
		logger.Info("metrics server listening", zap.String("addr", srv.Addr()))
		if err := srv.Start(); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err = loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("poll loop ended", zap.Error(err))
		return err
	}
	logger.Info("imu producer stopped")
	return nil
}
