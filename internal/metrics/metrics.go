// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/imu_rs485/internal/calibration"
	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/poller"
)

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// PollMetrics tracks the poll loop. It is a poller.Observer.
type PollMetrics struct {
	Cycles           *prometheus.CounterVec // labels: result=ok|error
	Failures         *prometheus.CounterVec // labels: reason
	LastSample       prometheus.Gauge
	Reading          *prometheus.GaugeVec // labels: quantity, axis
	Temperature      prometheus.Gauge
	CalibrationPhase prometheus.Gauge
	CommandsSent     *prometheus.CounterVec // labels: command
	PublishErrors    prometheus.Counter
}

// NewPollMetrics registers and returns the poll metrics.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	m := &PollMetrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imu_poll_cycles_total",
			Help: "Poll cycles by result.",
		}, []string{"result"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imu_poll_failures_total",
			Help: "Failed poll cycles by reason.",
		}, []string{"reason"}),
		LastSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imu_last_sample_timestamp_seconds",
			Help: "Unix time of the last decoded sample.",
		}),
		Reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "imu_reading",
			Help: "Latest filtered reading (accel G, gyro deg/s, angle deg, mag counts).",
		}, []string{"quantity", "axis"}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imu_temperature_celsius",
			Help: "Latest device temperature.",
		}),
		CalibrationPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imu_calibration_phase",
			Help: "Calibration phase: 0 idle, 1 accel capture, 2 field calibrating.",
		}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imu_commands_sent_total",
			Help: "Vendor commands written to the device.",
		}, []string{"command"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imu_publish_errors_total",
			Help: "Failed MQTT publishes.",
		}),
	}
	reg.MustRegister(m.Cycles, m.Failures, m.LastSample, m.Reading, m.Temperature, m.CalibrationPhase, m.CommandsSent, m.PublishErrors)
	return m
}

func (m *PollMetrics) OnSample(s imu.Sample) {
	m.Cycles.WithLabelValues("ok").Inc()
	m.LastSample.Set(float64(s.At.UnixNano()) / 1e9)

	set := func(quantity string, v imu.Vec3) {
		m.Reading.WithLabelValues(quantity, "x").Set(v.X)
		m.Reading.WithLabelValues(quantity, "y").Set(v.Y)
		m.Reading.WithLabelValues(quantity, "z").Set(v.Z)
	}
	if s.Groups.Has(imu.GroupAccel) {
		set("accel", s.Accel)
	}
	if s.Groups.Has(imu.GroupGyro) {
		set("gyro", s.Gyro)
	}
	if s.Groups.Has(imu.GroupAngle) {
		set("angle", s.Angle)
	}
	if s.Groups.Has(imu.GroupMag) {
		set("mag", s.Mag)
	}
	if s.Groups.Has(imu.GroupTemp) {
		m.Temperature.Set(s.Temp)
	}
}

func (m *PollMetrics) OnCycleFailure(err error) {
	m.Cycles.WithLabelValues("error").Inc()
	m.Failures.WithLabelValues(poller.Reason(err)).Inc()
}

// ObservePhase records a calibration phase change.
func (m *PollMetrics) ObservePhase(p calibration.Phase) {
	m.CalibrationPhase.Set(float64(p))
}
