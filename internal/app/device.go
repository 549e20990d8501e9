// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/calibration"
	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/metrics"
	"github.com/relabs-tech/imu_rs485/internal/poller"
	"github.com/relabs-tech/imu_rs485/internal/protocol"
	"github.com/relabs-tech/imu_rs485/internal/sensors"
)

// device is an open link to the sensor: the real serial port or the
// simulated one.
type device interface {
	poller.Transport
	io.Closer
}

// openDevice opens the configured serial port, or a simulated device when
// mock is set.
func openDevice(cfg *config.Config, mock bool, logger *zap.Logger) (device, error) {
	if mock {
		logger.Info("using simulated device",
			zap.String("address", hexByte(cfg.IMUAddress)),
			zap.String("layout", cfg.IMULayout),
		)
		return sensors.NewMockPort(cfg.IMUAddress, cfg.Layout(), cfg.IMUAccelDivisor), nil
	}

	port, err := sensors.OpenSerial(sensors.SerialConfig{
		PortName:    cfg.IMUSerialPort,
		BaudRate:    cfg.IMUBaudRate,
		RS485:       cfg.IMURS485,
		CharTimeout: cfg.ResponseTimeout(),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("serial port opened",
		zap.String("port", port.Name()),
		zap.Int("baud", cfg.IMUBaudRate),
		zap.Bool("rs485", cfg.IMURS485),
	)
	return port, nil
}

// newLoop builds the poll loop for cfg on top of t.
func newLoop(cfg *config.Config, t poller.Transport, logger *zap.Logger) *poller.Loop {
	return poller.New(t, poller.Config{
		Address:         cfg.IMUAddress,
		StartRegister:   cfg.IMUStartRegister,
		Decoder:         cfg.Decoder(),
		FilterWindow:    cfg.IMUFilterWindow,
		Interval:        cfg.PollInterval(),
		ResponseTimeout: cfg.ResponseTimeout(),
		FailureLogRate:  cfg.FailureLogRate,
	}, logger)
}

// newController builds a calibration controller that sends through loop
// and taps its samples.
func newController(cfg *config.Config, loop *poller.Loop, m *metrics.PollMetrics, logger *zap.Logger) *calibration.Controller {
	var sender calibration.CommandSender = loop
	if m != nil {
		sender = countingSender{next: loop, metrics: m}
	}
	ctrl := calibration.NewController(sender, logger, cfg.CommandSettle())
	if m != nil {
		ctrl.OnPhaseChange(m.ObservePhase)
	}
	loop.SetCapturer(ctrl)
	return ctrl
}

// countingSender counts successful vendor commands.
type countingSender struct {
	next    calibration.CommandSender
	metrics *metrics.PollMetrics
}

func (s countingSender) SendCommand(ctx context.Context, cmd protocol.Command) error {
	if err := s.next.SendCommand(ctx, cmd); err != nil {
		return err
	}
	s.metrics.CommandsSent.WithLabelValues(cmd.Name).Inc()
	return nil
}
