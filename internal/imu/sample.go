// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/json"
	"fmt"
	"time"
)

// Vec3 is a three-axis reading in physical units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Group identifies a block of quantities carried by a Sample.
type Group uint8

const (
	GroupAccel Group = 1 << iota
	GroupGyro
	GroupAngle
	GroupMag
	GroupTemp
)

var groupNames = []struct {
	g    Group
	name string
}{
	{GroupAccel, "accel"},
	{GroupGyro, "gyro"},
	{GroupAngle, "angle"},
	{GroupMag, "mag"},
	{GroupTemp, "temp"},
}

// Has reports whether all groups in o are set.
func (g Group) Has(o Group) bool { return g&o == o }

// Names returns the names of the set groups in register order.
func (g Group) Names() []string {
	names := make([]string, 0, len(groupNames))
	for _, gn := range groupNames {
		if g.Has(gn.g) {
			names = append(names, gn.name)
		}
	}
	return names
}

func (g Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Names())
}

func (g *Group) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var out Group
	for _, n := range names {
		found := false
		for _, gn := range groupNames {
			if gn.name == n {
				out |= gn.g
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown sample group %q", n)
		}
	}
	*g = out
	return nil
}

// Sample is one decoded poll result. Only the groups listed in Groups carry
// meaningful values; the rest are zero.
//
// Units: Accel in G, Gyro in deg/s, Angle in deg (roll, pitch, yaw),
// Mag in raw counts, Temp in degrees Celsius.
type Sample struct {
	At     time.Time `json:"at"`
	Groups Group     `json:"groups"`
	Accel  Vec3      `json:"accel"`
	Gyro   Vec3      `json:"gyro"`
	Angle  Vec3      `json:"angle"`
	Mag    Vec3      `json:"mag"`
	Temp   float64   `json:"temp"`
}

// WithAccel returns a copy of s with the acceleration replaced.
func (s Sample) WithAccel(v Vec3) Sample {
	s.Accel = v
	return s
}

// String renders the present groups on one line, the way the console tools log them.
func (s Sample) String() string {
	out := ""
	if s.Groups.Has(GroupAccel) {
		out += fmt.Sprintf("accel x=%.3f y=%.3f z=%.3f G ", s.Accel.X, s.Accel.Y, s.Accel.Z)
	}
	if s.Groups.Has(GroupGyro) {
		out += fmt.Sprintf("gyro x=%.2f y=%.2f z=%.2f deg/s ", s.Gyro.X, s.Gyro.Y, s.Gyro.Z)
	}
	if s.Groups.Has(GroupAngle) {
		out += fmt.Sprintf("angle r=%.2f p=%.2f y=%.2f deg ", s.Angle.X, s.Angle.Y, s.Angle.Z)
	}
	if s.Groups.Has(GroupMag) {
		out += fmt.Sprintf("mag x=%.0f y=%.0f z=%.0f ", s.Mag.X, s.Mag.Y, s.Mag.Z)
	}
	if s.Groups.Has(GroupTemp) {
		out += fmt.Sprintf("temp=%.2fC ", s.Temp)
	}
	if out == "" {
		return "empty sample"
	}
	return out[:len(out)-1]
}
