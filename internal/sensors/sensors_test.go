// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/protocol"
)

// chunkedStream hands out data in fixed chunks, then reports the tty
// timeout (0, io.EOF).
type chunkedStream struct {
	chunks  [][]byte
	err     error
	written []byte
}

func (c *chunkedStream) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *chunkedStream) Write(p []byte) (int, error) {
	c.written = append(c.written, p...)
	return len(p), nil
}

func (c *chunkedStream) Close() error { return nil }

func TestSerialPortReadAssemblesChunks(t *testing.T) {
	s := &chunkedStream{chunks: [][]byte{{1, 2, 3}, {4, 5}, {6, 7, 8}}}
	p := NewSerialPort("test", s)

	got, err := p.Read(6, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, got)

	got, err = p.Read(6, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8}, got, "a quiet line ends a short read")
}

func TestSerialPortReadTimeoutIsEmpty(t *testing.T) {
	p := NewSerialPort("test", &chunkedStream{})
	got, err := p.Read(17, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSerialPortReadError(t *testing.T) {
	p := NewSerialPort("test", &chunkedStream{err: errors.New("device removed")})
	_, err := p.Read(17, 5*time.Millisecond)
	assert.Error(t, err)
}

func TestSerialPortWrite(t *testing.T) {
	s := &chunkedStream{}
	p := NewSerialPort("test", s)
	n, err := p.Write([]byte{0xFF, 0xAA, 0x01, 0x04})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0xFF, 0xAA, 0x01, 0x04}, s.written)
	assert.Equal(t, "test", p.Name())
}

func TestSerialPortDrainDiscardsBufferedInput(t *testing.T) {
	s := &chunkedStream{chunks: [][]byte{{0x50, 0x03, 0x0C}, {0x01, 0x02}}}
	p := NewSerialPort("test", s)

	require.NoError(t, p.Drain())
	got, err := p.Read(17, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSerialPortDrainError(t *testing.T) {
	p := NewSerialPort("test", &chunkedStream{err: errors.New("device removed")})
	assert.Error(t, p.Drain())
}

// chattyStream never goes quiet.
type chattyStream struct{ chunkedStream }

func (c *chattyStream) Read(p []byte) (int, error) {
	p[0] = 0xAA
	return 1, nil
}

func TestSerialPortDrainGivesUpOnBusyLine(t *testing.T) {
	p := NewSerialPort("test", &chattyStream{})
	err := p.Drain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still busy")
}

func TestCharTimeout(t *testing.T) {
	assert.Equal(t, uint(100), charTimeoutMS(0))
	assert.Equal(t, uint(100), charTimeoutMS(50*time.Millisecond))
	assert.Equal(t, uint(200), charTimeoutMS(101*time.Millisecond))
	assert.Equal(t, uint(500), charTimeoutMS(500*time.Millisecond))
}

func exchange(t *testing.T, m *MockPort, count uint16) []byte {
	t.Helper()
	_, err := m.Write(protocol.BuildReadRequest(m.Address, protocol.FuncReadRegisters, imu.DefaultStartRegister, count))
	require.NoError(t, err)
	raw, err := m.Read(protocol.ResponseLength(count), time.Millisecond)
	require.NoError(t, err)
	return raw
}

func TestMockPortServesValidMotionFrames(t *testing.T) {
	m := NewMockPort(0x50, imu.LayoutMotion, 1000)
	d := imu.NewDecoder(imu.LayoutMotion, 1000)

	for i := 0; i < 5; i++ {
		frame, err := protocol.ParseResponse(exchange(t, m, imu.LayoutMotion.Count))
		require.NoError(t, err)
		s, err := d.Decode(frame.Payload, time.Now())
		require.NoError(t, err)

		norm := math.Sqrt(s.Accel.X*s.Accel.X + s.Accel.Y*s.Accel.Y + s.Accel.Z*s.Accel.Z)
		assert.InDelta(t, 1.0, norm, 0.01, "gravity vector")
		assert.InDelta(t, 30.0, s.Gyro.Z, 0.1)
	}
}

func TestMockPortFullLayout(t *testing.T) {
	m := NewMockPort(0x50, imu.LayoutFull, imu.RawFullScale/16)
	frame, err := protocol.ParseResponse(exchange(t, m, imu.LayoutFull.Count))
	require.NoError(t, err)

	s, err := imu.NewDecoder(imu.LayoutFull, imu.RawFullScale/16).Decode(frame.Payload, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 25.0, s.Temp, 1e-9)
	assert.InDelta(t, -410.0, s.Mag.Z, 1e-9)
	assert.LessOrEqual(t, math.Abs(s.Angle.Z), 180.0)
}

func TestMockPortIgnoresForeignFrames(t *testing.T) {
	m := NewMockPort(0x50, imu.LayoutMotion, 0)

	_, err := m.Write(protocol.BuildReadRequest(0x51, protocol.FuncReadRegisters, 0x30, 6))
	require.NoError(t, err)
	got, err := m.Read(17, time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = m.Write([]byte{0x50, 0x03, 0x00})
	require.NoError(t, err)
	got, _ = m.Read(17, time.Millisecond)
	assert.Empty(t, got)
}

func TestMockPortFaultInjection(t *testing.T) {
	m := NewMockPort(0x50, imu.LayoutMotion, 0)
	m.DropEvery = 2
	m.CorruptEvery = 3

	_, err := protocol.ParseResponse(exchange(t, m, 6))
	assert.NoError(t, err)
	assert.Empty(t, exchange(t, m, 6))
	_, err = protocol.ParseResponse(exchange(t, m, 6))
	assert.ErrorIs(t, err, protocol.ErrChecksumMismatch)
}

func TestMockPortRecordsCommands(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMockPort(0x50, imu.LayoutAngle, 0)
	m.start = now
	m.now = func() time.Time { return now.Add(3 * time.Second) }

	_, err := m.Write(protocol.CmdResetAngles.Frame())
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0xFF, 0xAA, 0x01, 0x04}}, m.Commands())

	frame, err := protocol.ParseResponse(exchange(t, m, imu.LayoutAngle.Count))
	require.NoError(t, err)
	s, err := imu.NewDecoder(imu.LayoutAngle, 0).Decode(frame.Payload, now)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, s.Angle.Z, 0.01, "yaw is zeroed by reset_angles")
}

func TestMockPortDrainDropsPendingReply(t *testing.T) {
	m := NewMockPort(0x50, imu.LayoutMotion, 0)
	_, err := m.Write(protocol.BuildReadRequest(0x50, protocol.FuncReadRegisters, imu.DefaultStartRegister, 6))
	require.NoError(t, err)

	require.NoError(t, m.Drain())
	got, err := m.Read(17, time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, got)
}
