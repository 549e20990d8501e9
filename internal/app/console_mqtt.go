// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/orientation"
)

// RunConsoleMQTT prints what the producer publishes until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	subs := []struct {
		topic  string
		format func([]byte) (string, error)
	}{
		{cfg.TopicPose, formatPoseLine},
		{cfg.TopicIMU, formatSampleLine},
		{cfg.TopicStatus, formatStatusLine},
	}
	for _, sub := range subs {
		format := sub.format
		topic := sub.topic
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				logger.Warn("console: bad payload", zap.String("topic", topic), zap.Error(err))
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		logger.Info("console: subscribed", zap.String("topic", topic))
	}

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

func formatPoseLine(payload []byte) (string, error) {
	var p orientation.Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("pose unmarshal: %w", err)
	}
	return fmt.Sprintf("[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f  (%s)", p.Roll, p.Pitch, p.Yaw, p.Source), nil
}

func formatSampleLine(payload []byte) (string, error) {
	var s imu.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", fmt.Errorf("sample unmarshal: %w", err)
	}
	return "[IMU ]  " + s.String(), nil
}

func formatStatusLine(payload []byte) (string, error) {
	var st StatusMessage
	if err := json.Unmarshal(payload, &st); err != nil {
		return "", fmt.Errorf("status unmarshal: %w", err)
	}
	return fmt.Sprintf("[FAIL]  %s: %s", st.Reason, st.Error), nil
}
