// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/protocol"
)

// MockPort simulates the device on the bus. It answers read requests for
// its address with frames carrying smoothly changing motion, and records
// vendor commands. Safe for concurrent use.
type MockPort struct {
	Address      byte
	Layout       imu.Layout
	AccelDivisor float64

	// DropEvery and CorruptEvery inject faults on every Nth response.
	DropEvery    int
	CorruptEvery int

	mu        sync.Mutex
	start     time.Time
	yawZero   float64
	pending   []byte
	responses int
	commands  [][]byte
	now       func() time.Time
}

// NewMockPort returns a simulated device at address serving layout.
func NewMockPort(address byte, layout imu.Layout, accelDivisor float64) *MockPort {
	if accelDivisor <= 0 {
		accelDivisor = imu.DefaultAccelDivisor
	}
	return &MockPort{
		Address:      address,
		Layout:       layout,
		AccelDivisor: accelDivisor,
		start:        time.Now(),
		now:          time.Now,
	}
}

// Write accepts a read request or a vendor command.
func (m *MockPort) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xAA {
		m.commands = append(m.commands, append([]byte(nil), b...))
		if bytes.Equal(b, protocol.CmdResetAngles.Bytes) {
			m.yawZero = m.motion().yaw + m.yawZero
		}
		return len(b), nil
	}

	req, err := protocol.ParseReadRequest(b)
	if err != nil || req.Address != m.Address || req.Function != protocol.FuncReadRegisters {
		// a real device stays silent on frames it does not own
		m.pending = nil
		return len(b), nil
	}

	m.responses++
	if m.DropEvery > 0 && m.responses%m.DropEvery == 0 {
		m.pending = nil
		return len(b), nil
	}

	resp, err := protocol.BuildResponse(m.Address, protocol.FuncReadRegisters, m.payload(int(req.Count)))
	if err != nil {
		m.pending = nil
		return len(b), nil
	}
	if m.CorruptEvery > 0 && m.responses%m.CorruptEvery == 0 {
		resp[len(resp)/2] ^= 0x5A
	}
	m.pending = resp
	return len(b), nil
}

// Read returns the pending response, or nothing when no reply is due.
func (m *MockPort) Read(max int, _ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.pending
	m.pending = nil
	if len(r) > max {
		r = r[:max]
	}
	return r, nil
}

// Drain drops any reply not yet read.
func (m *MockPort) Drain() error {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
	return nil
}

// Close is a no-op.
func (m *MockPort) Close() error { return nil }

// Commands returns the vendor commands received so far.
func (m *MockPort) Commands() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.commands...)
}

type motion struct {
	roll, pitch, yaw float64 // deg
	gx, gy, gz       float64 // deg/s
}

// motion must be called with m.mu held.
func (m *MockPort) motion() motion {
	t := m.now().Sub(m.start).Seconds()
	return motion{
		roll:  20 * math.Sin(t),
		pitch: 15 * math.Cos(t*0.7),
		yaw:   math.Mod(t*30, 360) - m.yawZero,
		gx:    20 * math.Cos(t),
		gy:    -15 * 0.7 * math.Sin(t*0.7),
		gz:    30,
	}
}

func (m *MockPort) payload(count int) []byte {
	mo := m.motion()
	words := make([]int16, count)
	set := func(idx int, vs ...float64) {
		for i, v := range vs {
			if idx >= 0 && idx+i < count {
				words[idx+i] = clamp16(v)
			}
		}
	}

	r, p := mo.roll*math.Pi/180, mo.pitch*math.Pi/180
	ax, ay, az := -math.Sin(p), math.Sin(r)*math.Cos(p), math.Cos(r)*math.Cos(p)
	rawFull := imu.RawFullScale

	set(m.Layout.Accel, ax*m.AccelDivisor, ay*m.AccelDivisor, az*m.AccelDivisor)
	set(m.Layout.Gyro, mo.gx/imu.GyroFullScale*rawFull, mo.gy/imu.GyroFullScale*rawFull, mo.gz/imu.GyroFullScale*rawFull)
	set(m.Layout.Angle, wrap180(mo.roll)/imu.AngleFullScale*rawFull, wrap180(mo.pitch)/imu.AngleFullScale*rawFull, wrap180(mo.yaw)/imu.AngleFullScale*rawFull)
	set(m.Layout.Mag, 220*math.Cos(mo.yaw*math.Pi/180), -220*math.Sin(mo.yaw*math.Pi/180), -410)
	set(m.Layout.Temp, 25.0*imu.TempDivisor)

	b := make([]byte, 2*count)
	for i, w := range words {
		binary.BigEndian.PutUint16(b[2*i:], uint16(w))
	}
	return b
}

func wrap180(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

func clamp16(v float64) int16 {
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
