// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

import (
	"testing"

	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/stretchr/testify/assert"
)

func TestMovingAverageConverges(t *testing.T) {
	for _, window := range []int{1, 10, 50} {
		ma := NewMovingAverage(window)
		var got float64
		for i := 0; i < window; i++ {
			got = ma.Push(2.5)
		}
		assert.InDelta(t, 2.5, got, 1e-12, "window %d", window)
		assert.Equal(t, window, ma.Len())
	}
}

func TestMovingAveragePartialWindow(t *testing.T) {
	ma := NewMovingAverage(10)
	assert.InDelta(t, 1.0, ma.Push(1), 1e-12)
	assert.InDelta(t, 1.5, ma.Push(2), 1e-12)
	assert.InDelta(t, 2.0, ma.Push(3), 1e-12)
	assert.Equal(t, 3, ma.Len())
}

func TestMovingAverageEvictsOldest(t *testing.T) {
	ma := NewMovingAverage(3)
	ma.Push(1)
	ma.Push(2)
	ma.Push(3)
	// window now {2,3,4}
	assert.InDelta(t, 3.0, ma.Push(4), 1e-12)
	assert.Equal(t, 3, ma.Len())
	// window now {3,4,5}
	assert.InDelta(t, 4.0, ma.Push(5), 1e-12)
	assert.Equal(t, 3, ma.Window())
}

func TestMovingAverageLongRun(t *testing.T) {
	ma := NewMovingAverage(10)
	var got float64
	for i := 0; i < 10000; i++ {
		got = ma.Push(float64(i) * 0.001)
	}
	// mean of the last ten values 9.990 .. 9.999
	assert.InDelta(t, 9.9945, got, 1e-9)
}

func TestMovingAverageClampsWindow(t *testing.T) {
	ma := NewMovingAverage(0)
	assert.Equal(t, 1, ma.Window())
	ma.Push(5)
	assert.InDelta(t, 7.0, ma.Push(7), 1e-12)
}

func TestMovingAverageReset(t *testing.T) {
	ma := NewMovingAverage(4)
	ma.Push(100)
	ma.Reset()
	assert.Equal(t, 0, ma.Len())
	assert.InDelta(t, 1.0, ma.Push(1), 1e-12)
}

func TestBankChannelsAreIndependent(t *testing.T) {
	b := NewBank(2)
	assert.InDelta(t, 1.0, b.Push(AccelX, 1), 1e-12)
	assert.InDelta(t, 10.0, b.Push(AccelY, 10), 1e-12)
	assert.InDelta(t, 2.0, b.Push(AccelX, 3), 1e-12)
	assert.InDelta(t, 15.0, b.Push(AccelY, 20), 1e-12)
	assert.Equal(t, 2, b.Window())
}

func TestBankApply(t *testing.T) {
	b := NewBank(2)
	s1 := imu.Sample{
		Groups: imu.GroupAccel | imu.GroupGyro | imu.GroupMag,
		Accel:  imu.Vec3{X: 0, Y: 0, Z: 1},
		Gyro:   imu.Vec3{X: 10},
		Mag:    imu.Vec3{X: 100},
	}
	s2 := s1
	s2.Accel = imu.Vec3{X: 1, Y: 0, Z: 1}
	s2.Gyro = imu.Vec3{X: 20}
	s2.Mag = imu.Vec3{X: 300}

	b.Apply(s1)
	out := b.Apply(s2)

	assert.InDelta(t, 0.5, out.Accel.X, 1e-12)
	assert.InDelta(t, 1.0, out.Accel.Z, 1e-12)
	assert.InDelta(t, 15.0, out.Gyro.X, 1e-12)
	assert.Equal(t, 300.0, out.Mag.X, "magnetometer is not filtered")
	assert.Equal(t, imu.Vec3{X: 1, Y: 0, Z: 1}, s2.Accel, "input sample is not mutated")
}
