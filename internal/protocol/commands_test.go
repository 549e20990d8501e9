// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCommand(t *testing.T) {
	tests := []struct {
		name     string
		expected []byte
	}{
		{name: "accel_calibration", expected: []byte{0xFF, 0xAA, 0x01, 0x01}},
		{name: "begin_field_calibration", expected: []byte{0xFF, 0xAA, 0x01, 0x07}},
		{name: "end_field_calibration", expected: []byte{0xFF, 0xAA, 0x01, 0x00}},
		{name: "reset_angles", expected: []byte{0xFF, 0xAA, 0x01, 0x04}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := LookupCommand(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c.Frame())
		})
	}

	_, err := LookupCommand("factory_reset")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestCommandFrameIsACopy(t *testing.T) {
	f := CmdResetAngles.Frame()
	f[3] = 0x00
	assert.Equal(t, byte(0x04), CmdResetAngles.Bytes[3])
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, []string{
		"accel_calibration",
		"begin_field_calibration",
		"end_field_calibration",
		"reset_angles",
	}, CommandNames())
}
