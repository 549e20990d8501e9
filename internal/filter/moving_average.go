// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter smooths decoded sensor channels with a fixed-window
// moving average.
package filter

import "github.com/relabs-tech/imu_rs485/internal/imu"

// DefaultWindow is the window used when none is configured.
const DefaultWindow = 10

// MovingAverage keeps the last N values of one channel in a ring buffer.
// It is not safe for concurrent use; each instance belongs to the
// goroutine doing the decoding.
type MovingAverage struct {
	buf  []float64
	next int
	n    int
	sum  float64
}

// NewMovingAverage returns a filter holding at most window values.
// Windows below 1 are raised to 1.
func NewMovingAverage(window int) *MovingAverage {
	if window < 1 {
		window = 1
	}
	return &MovingAverage{buf: make([]float64, window)}
}

// Push appends v, evicting the oldest value when the window is full, and
// returns the mean of the values currently held.
func (m *MovingAverage) Push(v float64) float64 {
	if m.n == len(m.buf) {
		m.sum -= m.buf[m.next]
	} else {
		m.n++
	}
	m.buf[m.next] = v
	m.sum += v
	m.next = (m.next + 1) % len(m.buf)

	// recompute once per lap so float drift in the running sum stays bounded
	if m.next == 0 {
		m.sum = 0
		for _, x := range m.buf[:m.n] {
			m.sum += x
		}
	}
	return m.sum / float64(m.n)
}

// Len is the number of values currently held.
func (m *MovingAverage) Len() int { return m.n }

// Window is the capacity of the filter.
func (m *MovingAverage) Window() int { return len(m.buf) }

// Reset drops all held values.
func (m *MovingAverage) Reset() {
	m.next, m.n, m.sum = 0, 0, 0
}

// Channel names a filtered quantity.
type Channel string

const (
	AccelX Channel = "accel_x"
	AccelY Channel = "accel_y"
	AccelZ Channel = "accel_z"
	GyroX  Channel = "gyro_x"
	GyroY  Channel = "gyro_y"
	GyroZ  Channel = "gyro_z"
	Roll   Channel = "roll"
	Pitch  Channel = "pitch"
	Yaw    Channel = "yaw"
)

// Bank holds one independent MovingAverage per channel, created on first use.
type Bank struct {
	window   int
	channels map[Channel]*MovingAverage
}

// NewBank returns a bank whose channels all use the given window.
func NewBank(window int) *Bank {
	if window < 1 {
		window = 1
	}
	return &Bank{window: window, channels: make(map[Channel]*MovingAverage)}
}

// Push feeds v into channel c and returns the channel's current mean.
func (b *Bank) Push(c Channel, v float64) float64 {
	ma, ok := b.channels[c]
	if !ok {
		ma = NewMovingAverage(b.window)
		b.channels[c] = ma
	}
	return ma.Push(v)
}

// Window is the per-channel window size.
func (b *Bank) Window() int { return b.window }

// Reset clears every channel.
func (b *Bank) Reset() {
	for _, ma := range b.channels {
		ma.Reset()
	}
}

// Apply runs the filterable groups of s (accel, gyro, angle) through the
// bank and returns the smoothed copy. Magnetometer and temperature pass
// through unchanged.
func (b *Bank) Apply(s imu.Sample) imu.Sample {
	if s.Groups.Has(imu.GroupAccel) {
		s.Accel = imu.Vec3{X: b.Push(AccelX, s.Accel.X), Y: b.Push(AccelY, s.Accel.Y), Z: b.Push(AccelZ, s.Accel.Z)}
	}
	if s.Groups.Has(imu.GroupGyro) {
		s.Gyro = imu.Vec3{X: b.Push(GyroX, s.Gyro.X), Y: b.Push(GyroY, s.Gyro.Y), Z: b.Push(GyroZ, s.Gyro.Z)}
	}
	if s.Groups.Has(imu.GroupAngle) {
		s.Angle = imu.Vec3{X: b.Push(Roll, s.Angle.X), Y: b.Push(Pitch, s.Angle.Y), Z: b.Push(Yaw, s.Angle.Z)}
	}
	return s
}
