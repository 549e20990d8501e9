// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import "github.com/relabs-tech/imu_rs485/internal/imu"

// GravityBiasG is added back to the Z axis after subtracting the captured
// mean. Capture assumes the device sat still and level (Z up), so the mean
// Z reading contains 1 G of gravity that must survive correction. This is
// a modeling assumption, not a measurement.
const GravityBiasG = 1.0

// Offset is the per-axis accelerometer bias captured while the device was
// at rest. Mean holds the arithmetic mean of the captured samples in G.
type Offset struct {
	Mean    imu.Vec3 `json:"mean"`
	Samples int      `json:"samples"`
	Session string   `json:"session"`
}

// Apply returns v corrected by the offset: v - mean, with GravityBiasG
// added to Z.
func (o Offset) Apply(v imu.Vec3) imu.Vec3 {
	c := v.Sub(o.Mean)
	c.Z += GravityBiasG
	return c
}

func mean(vs []imu.Vec3) imu.Vec3 {
	var sum imu.Vec3
	for _, v := range vs {
		sum.X += v.X
		sum.Y += v.Y
		sum.Z += v.Z
	}
	n := float64(len(vs))
	return imu.Vec3{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}
