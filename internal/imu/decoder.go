// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Scale constants. Raw words are signed 16-bit, big-endian.
const (
	RawFullScale   = 32768.0
	GyroFullScale  = 2000.0 // deg/s
	AngleFullScale = 180.0  // deg
	TempDivisor    = 100.0

	// DefaultAccelDivisor matches the 6-register motion read.
	// Other firmware ranges use 1024 or RawFullScale/16.
	DefaultAccelDivisor = 1000.0
)

// ErrInsufficientPayload is returned when a payload holds fewer bytes than
// the requested number of words.
var ErrInsufficientPayload = errors.New("insufficient payload")

// DecodeWords reads wordCount big-endian signed 16-bit words from payload.
// Extra trailing bytes are ignored.
func DecodeWords(payload []byte, wordCount int) ([]int16, error) {
	if wordCount < 0 || len(payload) < 2*wordCount {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientPayload, 2*wordCount, len(payload))
	}
	words := make([]int16, wordCount)
	for i := range words {
		words[i] = int16(binary.BigEndian.Uint16(payload[2*i:]))
	}
	return words, nil
}

// ScaleAccel converts a raw acceleration word to G.
func ScaleAccel(raw int16, divisor float64) float64 {
	return float64(raw) / divisor
}

// ScaleGyro converts a raw angular-rate word to deg/s.
func ScaleGyro(raw int16) float64 {
	return float64(raw) / RawFullScale * GyroFullScale
}

// ScaleAngle converts a raw angle word to degrees.
func ScaleAngle(raw int16) float64 {
	return float64(raw) / RawFullScale * AngleFullScale
}

// ScaleTemp converts a raw temperature word to degrees Celsius.
func ScaleTemp(raw int16) float64 {
	return float64(raw) / TempDivisor
}

// Decoder turns register payloads into Samples. It holds no state besides
// its configuration and is safe for concurrent use.
type Decoder struct {
	Layout       Layout
	AccelDivisor float64
}

// NewDecoder returns a decoder for layout. A non-positive divisor selects
// DefaultAccelDivisor.
func NewDecoder(layout Layout, accelDivisor float64) Decoder {
	if accelDivisor <= 0 {
		accelDivisor = DefaultAccelDivisor
	}
	return Decoder{Layout: layout, AccelDivisor: accelDivisor}
}

// Decode maps payload onto a Sample stamped with at.
func (d Decoder) Decode(payload []byte, at time.Time) (Sample, error) {
	words, err := DecodeWords(payload, int(d.Layout.Count))
	if err != nil {
		return Sample{}, err
	}

	s := Sample{At: at}
	l := d.Layout
	if l.Accel >= 0 {
		s.Groups |= GroupAccel
		s.Accel = Vec3{
			X: ScaleAccel(words[l.Accel], d.AccelDivisor),
			Y: ScaleAccel(words[l.Accel+1], d.AccelDivisor),
			Z: ScaleAccel(words[l.Accel+2], d.AccelDivisor),
		}
	}
	if l.Gyro >= 0 {
		s.Groups |= GroupGyro
		s.Gyro = Vec3{X: ScaleGyro(words[l.Gyro]), Y: ScaleGyro(words[l.Gyro+1]), Z: ScaleGyro(words[l.Gyro+2])}
	}
	if l.Angle >= 0 {
		s.Groups |= GroupAngle
		s.Angle = Vec3{X: ScaleAngle(words[l.Angle]), Y: ScaleAngle(words[l.Angle+1]), Z: ScaleAngle(words[l.Angle+2])}
	}
	if l.Mag >= 0 {
		s.Groups |= GroupMag
		s.Mag = Vec3{X: float64(words[l.Mag]), Y: float64(words[l.Mag+1]), Z: float64(words[l.Mag+2])}
	}
	if l.Temp >= 0 {
		s.Groups |= GroupTemp
		s.Temp = ScaleTemp(words[l.Temp])
	}
	return s, nil
}
