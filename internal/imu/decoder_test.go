// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(ws ...int16) []byte {
	b := make([]byte, 2*len(ws))
	for i, w := range ws {
		binary.BigEndian.PutUint16(b[2*i:], uint16(w))
	}
	return b
}

func TestDecodeWords(t *testing.T) {
	got, err := DecodeWords([]byte{0x03, 0xE8, 0xFE, 0x0C, 0x80, 0x00, 0x7F, 0xFF}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int16{1000, -500, -32768, 32767}, got)

	// trailing bytes are ignored
	got, err = DecodeWords([]byte{0x00, 0x01, 0x02}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int16{1}, got)

	_, err = DecodeWords([]byte{0x00, 0x01, 0x02}, 2)
	assert.ErrorIs(t, err, ErrInsufficientPayload)

	got, err = DecodeWords(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScales(t *testing.T) {
	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"accel 1000 /1000", ScaleAccel(1000, 1000), 1.0},
		{"accel -500 /1000", ScaleAccel(-500, 1000), -0.5},
		{"accel 2048 /2048", ScaleAccel(2048, RawFullScale/16), 1.0},
		{"accel 1024 /1024", ScaleAccel(1024, 1024), 1.0},
		{"gyro half scale", ScaleGyro(16384), 1000.0},
		{"gyro negative full scale", ScaleGyro(-32768), -2000.0},
		{"angle half scale", ScaleAngle(16384), 90.0},
		{"angle negative half scale", ScaleAngle(-16384), -90.0},
		{"angle negative full scale", ScaleAngle(-32768), -180.0},
		{"temp", ScaleTemp(2534), 25.34},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.got, 1e-9)
		})
	}
}

func TestDecodeMotion(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := NewDecoder(LayoutMotion, 0)
	assert.Equal(t, DefaultAccelDivisor, d.AccelDivisor)

	s, err := d.Decode(words(1000, -500, 2000, 16384, -16384, 0), at)
	require.NoError(t, err)

	assert.Equal(t, at, s.At)
	assert.True(t, s.Groups.Has(GroupAccel|GroupGyro))
	assert.False(t, s.Groups.Has(GroupAngle))
	assert.InDelta(t, 1.0, s.Accel.X, 1e-9)
	assert.InDelta(t, -0.5, s.Accel.Y, 1e-9)
	assert.InDelta(t, 2.0, s.Accel.Z, 1e-9)
	assert.InDelta(t, 1000.0, s.Gyro.X, 1e-9)
	assert.InDelta(t, -1000.0, s.Gyro.Y, 1e-9)
	assert.InDelta(t, 0.0, s.Gyro.Z, 1e-9)
	assert.Equal(t, Vec3{}, s.Angle)
}

func TestDecodeAngle(t *testing.T) {
	s, err := NewDecoder(LayoutAngle, 0).Decode(words(16384, -8192, 0), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, GroupAngle, s.Groups)
	assert.InDelta(t, 90.0, s.Angle.X, 1e-9)
	assert.InDelta(t, -45.0, s.Angle.Y, 1e-9)
	assert.InDelta(t, 0.0, s.Angle.Z, 1e-9)
}

func TestDecodeFull(t *testing.T) {
	payload := words(
		0x1A, 0x0102, 0x0304, 500, // chip time
		2048, 0, -2048, // accel
		16384, 0, 0, // gyro
		120, -340, 560, // mag
		0, 16384, -16384, // angle
		2534, // temperature
	)
	s, err := NewDecoder(LayoutFull, RawFullScale/16).Decode(payload, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, GroupAccel|GroupGyro|GroupAngle|GroupMag|GroupTemp, s.Groups)
	assert.InDelta(t, 1.0, s.Accel.X, 1e-9)
	assert.InDelta(t, -1.0, s.Accel.Z, 1e-9)
	assert.InDelta(t, 1000.0, s.Gyro.X, 1e-9)
	assert.Equal(t, Vec3{X: 120, Y: -340, Z: 560}, s.Mag)
	assert.InDelta(t, 90.0, s.Angle.Y, 1e-9)
	assert.InDelta(t, -90.0, s.Angle.Z, 1e-9)
	assert.InDelta(t, 25.34, s.Temp, 1e-9)
}

func TestDecodeShortPayload(t *testing.T) {
	_, err := NewDecoder(LayoutMotion, 0).Decode(words(1, 2, 3, 4, 5), time.Time{})
	assert.ErrorIs(t, err, ErrInsufficientPayload)
}

func TestLayoutByName(t *testing.T) {
	for _, name := range LayoutNames() {
		l, err := LayoutByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, l.Name)
	}
	_, err := LayoutByName("quaternion")
	assert.Error(t, err)

	assert.Equal(t, GroupAccel|GroupGyro, LayoutMotion.Groups())
	assert.Equal(t, GroupAngle, LayoutAngle.Groups())
}

func TestSampleJSON(t *testing.T) {
	s := Sample{
		At:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Groups: GroupAccel | GroupGyro,
		Accel:  Vec3{X: 0.1, Y: 0.2, Z: 1.0},
		Gyro:   Vec3{X: 1, Y: 2, Z: 3},
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"groups":["accel","gyro"]`)

	var back Sample
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s.Groups, back.Groups)
	assert.Equal(t, s.Accel, back.Accel)

	var g Group
	assert.Error(t, json.Unmarshal([]byte(`["quaternion"]`), &g))
}

func TestSampleString(t *testing.T) {
	assert.Equal(t, "empty sample", Sample{}.String())
	s := Sample{Groups: GroupTemp, Temp: 21.5}
	assert.Equal(t, "temp=21.50C", s.String())
}
