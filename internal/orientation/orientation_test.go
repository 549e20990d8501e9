// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/imu_rs485/internal/imu"
)

func TestComputePoseFromAccel(t *testing.T) {
	tests := []struct {
		name       string
		ax, ay, az float64
		roll       float64
		pitch      float64
	}{
		{name: "level", ax: 0, ay: 0, az: 1, roll: 0, pitch: 0},
		{name: "rolled 90", ax: 0, ay: 1, az: 0, roll: 90, pitch: 0},
		{name: "pitched nose up", ax: -1, ay: 0, az: 0, roll: 0, pitch: 90},
		{name: "rolled 45", ax: 0, ay: math.Sqrt2 / 2, az: math.Sqrt2 / 2, roll: 45, pitch: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePoseFromAccel(tt.ax, tt.ay, tt.az)
			assert.InDelta(t, tt.roll, p.Roll, 1e-9)
			assert.InDelta(t, tt.pitch, p.Pitch, 1e-9)
			assert.Equal(t, 0.0, p.Yaw)
		})
	}
}

func TestFromSample(t *testing.T) {
	p, ok := FromSample(imu.Sample{
		Groups: imu.GroupAngle | imu.GroupAccel,
		Angle:  imu.Vec3{X: 10, Y: -20, Z: 170},
		Accel:  imu.Vec3{Z: 1},
	})
	assert.True(t, ok)
	assert.Equal(t, "device", p.Source)
	assert.Equal(t, 170.0, p.Yaw)

	p, ok = FromSample(imu.Sample{Groups: imu.GroupAccel, Accel: imu.Vec3{Y: 1}})
	assert.True(t, ok)
	assert.Equal(t, "accel", p.Source)
	assert.InDelta(t, 90.0, p.Roll, 1e-9)

	_, ok = FromSample(imu.Sample{Groups: imu.GroupTemp})
	assert.False(t, ok)
}
