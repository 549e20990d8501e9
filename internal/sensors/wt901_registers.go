// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"strings"
)

// BitField describes a field inside a 16-bit register.
type BitField struct {
	Bits        string `json:"bits" yaml:"bits"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Values      string `json:"values,omitempty" yaml:"values,omitempty"`
}

// RegisterInfo is the metadata of one configuration register.
type RegisterInfo struct {
	Address     uint16     `json:"address" yaml:"-"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Access      string     `json:"access" yaml:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty" yaml:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty" yaml:"bit_fields,omitempty"`
	decode      func(v uint16) string
}

// ConfigBlock is a contiguous range of configuration registers read in one request.
type ConfigBlock struct {
	Start uint16
	Count uint16
}

// ConfigBlocks are the ranges dumped by the register debug tool: output
// content, return rate and baud (0x02..0x04), then installation direction
// and algorithm (0x23..0x24).
var ConfigBlocks = []ConfigBlock{
	{Start: 0x02, Count: 3},
	{Start: 0x23, Count: 2},
}

var returnRates = map[uint16]string{
	0x01: "0.2Hz", 0x02: "0.5Hz", 0x03: "1Hz", 0x04: "2Hz", 0x05: "5Hz",
	0x06: "10Hz", 0x07: "20Hz", 0x08: "50Hz", 0x09: "100Hz", 0x0B: "200Hz",
	0x0C: "single", 0x0D: "off",
}

var baudRates = map[uint16]string{
	0x01: "4800", 0x02: "9600", 0x03: "19200", 0x04: "38400",
	0x05: "57600", 0x06: "115200", 0x07: "230400",
}

var outputContent = []string{
	"time", "accel", "gyro", "angle", "mag", "port", "pressure", "gps",
	"velocity", "quaternion", "gps_accuracy",
}

// wt901RegisterMap returns metadata for the configuration registers the
// debug dump reads.
func wt901RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x02, Name: "RSW", Description: "Output content", Access: "RW", Default: "0x001E",
			BitFields: []BitField{
				{Bits: "0", Name: "TIME", Description: "Chip time"},
				{Bits: "1", Name: "ACC", Description: "Acceleration"},
				{Bits: "2", Name: "GYRO", Description: "Angular velocity"},
				{Bits: "3", Name: "ANGLE", Description: "Angle"},
				{Bits: "4", Name: "MAG", Description: "Magnetic field"},
				{Bits: "5", Name: "PORT", Description: "Port status"},
				{Bits: "6", Name: "PRESS", Description: "Pressure and height"},
				{Bits: "7", Name: "GPS", Description: "Longitude and latitude"},
				{Bits: "8", Name: "VELOCITY", Description: "Ground speed"},
				{Bits: "9", Name: "QUATER", Description: "Quaternion"},
				{Bits: "10", Name: "GSA", Description: "Satellite accuracy"},
			},
			decode: decodeOutputContent},
		{Address: 0x03, Name: "RRATE", Description: "Return rate", Access: "RW", Default: "0x0006",
			BitFields: []BitField{
				{Bits: "3:0", Name: "RRATE", Description: "Automatic output rate", Values: "1=0.2Hz ... 6=10Hz, 9=100Hz, 11=200Hz, 12=single, 13=off"},
			},
			decode: lookup(returnRates)},
		{Address: 0x04, Name: "BAUD", Description: "Serial baud rate", Access: "RW", Default: "0x0002",
			BitFields: []BitField{
				{Bits: "3:0", Name: "BAUD", Description: "Baud rate code", Values: "1=4800, 2=9600, 3=19200, 4=38400, 5=57600, 6=115200, 7=230400"},
			},
			decode: lookup(baudRates)},
		{Address: 0x23, Name: "ORIENT", Description: "Installation direction", Access: "RW", Default: "0x0000",
			BitFields: []BitField{
				{Bits: "0", Name: "ORIENT", Description: "Mounting", Values: "0=horizontal, 1=vertical"},
			},
			decode: lookup(map[uint16]string{0: "horizontal", 1: "vertical"})},
		{Address: 0x24, Name: "AXIS6", Description: "Attitude algorithm", Access: "RW", Default: "0x0000",
			BitFields: []BitField{
				{Bits: "0", Name: "AXIS6", Description: "Algorithm", Values: "0=9-axis, 1=6-axis"},
			},
			decode: lookup(map[uint16]string{0: "9-axis", 1: "6-axis"})},
	}
}

// LookupRegister returns the metadata of the register at addr.
func LookupRegister(addr uint16) (RegisterInfo, bool) {
	for _, r := range wt901RegisterMap() {
		if r.Address == addr {
			return r, true
		}
	}
	return RegisterInfo{}, false
}

// Describe renders v the way the register's datasheet table reads. Unknown
// registers and codes render as hex.
func (r RegisterInfo) Describe(v uint16) string {
	if r.decode == nil {
		return fmt.Sprintf("0x%04X", v)
	}
	return r.decode(v)
}

func lookup(m map[uint16]string) func(uint16) string {
	return func(v uint16) string {
		if s, ok := m[v]; ok {
			return s
		}
		return fmt.Sprintf("unknown (0x%04X)", v)
	}
}

func decodeOutputContent(v uint16) string {
	var on []string
	for i, name := range outputContent {
		if v&(1<<i) != 0 {
			on = append(on, name)
		}
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ",")
}
