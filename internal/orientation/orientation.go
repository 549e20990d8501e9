// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/relabs-tech/imu_rs485/internal/imu"
)

// Pose is the canonical representation of orientation for the app.
type Pose struct {
	At    time.Time `json:"at"`
	Roll  float64   `json:"roll"`
	Pitch float64   `json:"pitch"`
	Yaw   float64   `json:"yaw"`
	// Source is "device" when the angles came from the firmware and
	// "accel" when they were estimated from gravity.
	Source string `json:"source"`
}

// FromSample returns the pose carried by s. Firmware angles win; without
// them roll and pitch are estimated from the acceleration and yaw is 0.
// ok is false when s carries neither.
func FromSample(s imu.Sample) (Pose, bool) {
	switch {
	case s.Groups.Has(imu.GroupAngle):
		return Pose{At: s.At, Roll: s.Angle.X, Pitch: s.Angle.Y, Yaw: s.Angle.Z, Source: "device"}, true
	case s.Groups.Has(imu.GroupAccel):
		p := ComputePoseFromAccel(s.Accel.X, s.Accel.Y, s.Accel.Z)
		p.At = s.At
		p.Source = "accel"
		return p, true
	default:
		return Pose{}, false
	}
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}
