// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"errors"
	"fmt"
	"sort"
)

// Command is an opaque vendor command. The device interprets it outside
// the register protocol and sends no reply.
type Command struct {
	Name  string
	Bytes []byte
}

// Vendor commands understood by the device (FF AA <reg> <value>).
var (
	CmdAccelCalibration      = Command{Name: "accel_calibration", Bytes: []byte{0xFF, 0xAA, 0x01, 0x01}}
	CmdBeginFieldCalibration = Command{Name: "begin_field_calibration", Bytes: []byte{0xFF, 0xAA, 0x01, 0x07}}
	CmdEndFieldCalibration   = Command{Name: "end_field_calibration", Bytes: []byte{0xFF, 0xAA, 0x01, 0x00}}
	CmdResetAngles           = Command{Name: "reset_angles", Bytes: []byte{0xFF, 0xAA, 0x01, 0x04}}
)

// ErrUnknownCommand is returned by LookupCommand for unregistered names.
var ErrUnknownCommand = errors.New("unknown command")

var commands = map[string]Command{
	CmdAccelCalibration.Name:      CmdAccelCalibration,
	CmdBeginFieldCalibration.Name: CmdBeginFieldCalibration,
	CmdEndFieldCalibration.Name:   CmdEndFieldCalibration,
	CmdResetAngles.Name:           CmdResetAngles,
}

// LookupCommand returns the vendor command registered under name.
func LookupCommand(name string) (Command, error) {
	c, ok := commands[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return c, nil
}

// CommandNames lists the registered command names in sorted order.
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Frame returns the bytes to put on the wire for c.
func (c Command) Frame() []byte {
	return BuildRawCommand(c.Bytes)
}

func (c Command) String() string {
	return fmt.Sprintf("%s % X", c.Name, c.Bytes)
}
