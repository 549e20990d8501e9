// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/orientation"
	"github.com/relabs-tech/imu_rs485/internal/poller"
)

const publishTimeout = time.Second

// Publisher is the part of an MQTT client the producer needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Topics names where the producer publishes.
type Topics struct {
	Sample string
	Pose   string
	Status string
}

// StatusMessage is published on the status topic for every failed cycle.
type StatusMessage struct {
	At     time.Time `json:"at"`
	OK     bool      `json:"ok"`
	Reason string    `json:"reason"`
	Error  string    `json:"error,omitempty"`
}

// SamplePublisher publishes every sample and its pose, and every cycle
// failure as a status message. It runs on the poll goroutine.
type SamplePublisher struct {
	client  Publisher
	topics  Topics
	logger  *zap.Logger
	onError func(error)
	now     func() time.Time
}

// NewSamplePublisher returns a poller.Observer publishing to client.
// onError, if set, is called for every failed publish.
func NewSamplePublisher(client Publisher, topics Topics, logger *zap.Logger, onError func(error)) *SamplePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SamplePublisher{client: client, topics: topics, logger: logger, onError: onError, now: time.Now}
}

var _ poller.Observer = (*SamplePublisher)(nil)

func (p *SamplePublisher) OnSample(s imu.Sample) {
	p.publishJSON(p.topics.Sample, s)
	if pose, ok := orientation.FromSample(s); ok {
		p.publishJSON(p.topics.Pose, pose)
	}
}

func (p *SamplePublisher) OnCycleFailure(err error) {
	p.publishJSON(p.topics.Status, StatusMessage{
		At:     p.now(),
		OK:     false,
		Reason: poller.Reason(err),
		Error:  err.Error(),
	})
}

func (p *SamplePublisher) publishJSON(topic string, v any) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.failed(topic, fmt.Errorf("marshal: %w", err))
		return
	}
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.failed(topic, fmt.Errorf("publish timed out after %s", publishTimeout))
		return
	}
	if err := token.Error(); err != nil {
		p.failed(topic, err)
	}
}

func (p *SamplePublisher) failed(topic string, err error) {
	p.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	if p.onError != nil {
		p.onError(err)
	}
}

// connectMQTT connects a paho client with the given id.
func connectMQTT(broker, clientID string, logger *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	logger.Info("connected to MQTT broker", zap.String("broker", broker), zap.String("client_id", clientID))
	return client, nil
}

func hexByte(b byte) string { return fmt.Sprintf("0x%02X", b) }
