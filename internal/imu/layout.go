// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"sort"
)

// DefaultStartRegister is the first data register of the device.
const DefaultStartRegister uint16 = 0x30

// Layout describes which word offsets of a register read hold which group.
// An offset of -1 means the group is not part of the read.
type Layout struct {
	Name  string
	Count uint16
	Accel int
	Gyro  int
	Angle int
	Mag   int
	Temp  int
}

var (
	// LayoutMotion is the 6-register read: accel XYZ then gyro XYZ.
	LayoutMotion = Layout{Name: "motion", Count: 6, Accel: 0, Gyro: 3, Angle: -1, Mag: -1, Temp: -1}

	// LayoutAngle is the 3-register read: roll, pitch, yaw.
	LayoutAngle = Layout{Name: "angle", Count: 3, Accel: -1, Gyro: -1, Angle: 0, Mag: -1, Temp: -1}

	// LayoutFull follows the register map from 0x30: chip time (0x30-0x33),
	// accel (0x34), gyro (0x37), mag (0x3A), angle (0x3D), temperature (0x40).
	LayoutFull = Layout{Name: "full", Count: 17, Accel: 4, Gyro: 7, Mag: 10, Angle: 13, Temp: 16}
)

var layouts = map[string]Layout{
	LayoutMotion.Name: LayoutMotion,
	LayoutAngle.Name:  LayoutAngle,
	LayoutFull.Name:   LayoutFull,
}

// LayoutByName returns a predefined layout.
func LayoutByName(name string) (Layout, error) {
	l, ok := layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown register layout %q (valid: %v)", name, LayoutNames())
	}
	return l, nil
}

// LayoutNames lists the predefined layouts.
func LayoutNames() []string {
	names := make([]string, 0, len(layouts))
	for n := range layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Groups returns the groups a read with this layout produces.
func (l Layout) Groups() Group {
	var g Group
	if l.Accel >= 0 {
		g |= GroupAccel
	}
	if l.Gyro >= 0 {
		g |= GroupGyro
	}
	if l.Angle >= 0 {
		g |= GroupAngle
	}
	if l.Mag >= 0 {
		g |= GroupMag
	}
	if l.Temp >= 0 {
		g |= GroupTemp
	}
	return g
}
