// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMapCoversConfigBlocks(t *testing.T) {
	for _, b := range ConfigBlocks {
		for a := b.Start; a < b.Start+b.Count; a++ {
			_, ok := LookupRegister(a)
			assert.True(t, ok, "register 0x%02X has no metadata", a)
		}
	}
}

func TestRegisterDescribe(t *testing.T) {
	rsw, ok := LookupRegister(0x02)
	require.True(t, ok)
	assert.Equal(t, "accel,gyro,angle,mag", rsw.Describe(0x001E))
	assert.Equal(t, "none", rsw.Describe(0))

	rate, _ := LookupRegister(0x03)
	assert.Equal(t, "10Hz", rate.Describe(0x06))
	assert.Equal(t, "unknown (0x000A)", rate.Describe(0x0A))

	baud, _ := LookupRegister(0x04)
	assert.Equal(t, "230400", baud.Describe(0x07))

	orient, _ := LookupRegister(0x23)
	assert.Equal(t, "vertical", orient.Describe(1))

	_, ok = LookupRegister(0x99)
	assert.False(t, ok)
	assert.Equal(t, "0x0005", RegisterInfo{}.Describe(5))
}
