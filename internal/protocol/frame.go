// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package protocol builds and validates the register frames exchanged with
// the IMU over RS-485. The device speaks a subset of Modbus-RTU: read
// holding registers (0x03) plus a handful of opaque vendor commands.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FuncReadRegisters is the only function code the device answers.
const FuncReadRegisters byte = 0x03

const (
	requestLen     = 8
	minResponseLen = 5
	maxPayloadLen  = 0xFF
)

var (
	// ErrTooShort is returned for frames shorter than the fixed overhead.
	ErrTooShort = errors.New("frame too short")
	// ErrChecksumMismatch is returned when the trailing CRC does not match.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrByteCountMismatch is returned when the declared byte count does
	// not match the payload actually carried by the frame.
	ErrByteCountMismatch = errors.New("byte count mismatch")
	// ErrPayloadTooLarge is returned when a payload cannot be described by
	// the one-byte count field.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ReadRequest is a decoded read-registers request.
type ReadRequest struct {
	Address  byte
	Function byte
	Start    uint16
	Count    uint16
}

// ResponseFrame is a validated response. Payload is owned by the frame.
type ResponseFrame struct {
	Address   byte
	Function  byte
	ByteCount byte
	Payload   []byte
}

// BuildReadRequest encodes a read request:
// address, function, start (big-endian), count (big-endian), CRC (little-endian).
func BuildReadRequest(address, function byte, start, count uint16) []byte {
	b := make([]byte, 6, requestLen)
	b[0] = address
	b[1] = function
	binary.BigEndian.PutUint16(b[2:4], start)
	binary.BigEndian.PutUint16(b[4:6], count)
	return AppendChecksum(b)
}

// BuildRawCommand returns a copy of a vendor command. Vendor commands are
// sent verbatim, without address or checksum.
func BuildRawCommand(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ResponseLength is the total length of a response carrying count registers.
func ResponseLength(count uint16) int {
	return minResponseLen + 2*int(count)
}

// ParseResponse validates raw and splits it into its fields.
func ParseResponse(raw []byte) (ResponseFrame, error) {
	if len(raw) < minResponseLen {
		return ResponseFrame{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(raw))
	}
	if !VerifyChecksum(raw) {
		return ResponseFrame{}, ErrChecksumMismatch
	}
	declared := raw[2]
	payload := raw[3 : len(raw)-2]
	if int(declared) != len(payload) {
		return ResponseFrame{}, fmt.Errorf("%w: declared %d, carried %d", ErrByteCountMismatch, declared, len(payload))
	}

	p := make([]byte, len(payload))
	copy(p, payload)
	return ResponseFrame{
		Address:   raw[0],
		Function:  raw[1],
		ByteCount: declared,
		Payload:   p,
	}, nil
}

// ParseReadRequest decodes a request produced by BuildReadRequest.
func ParseReadRequest(raw []byte) (ReadRequest, error) {
	if len(raw) < requestLen {
		return ReadRequest{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(raw))
	}
	raw = raw[:requestLen]
	if !VerifyChecksum(raw) {
		return ReadRequest{}, ErrChecksumMismatch
	}
	return ReadRequest{
		Address:  raw[0],
		Function: raw[1],
		Start:    binary.BigEndian.Uint16(raw[2:4]),
		Count:    binary.BigEndian.Uint16(raw[4:6]),
	}, nil
}

// BuildResponse encodes a response frame carrying payload.
func BuildResponse(address, function byte, payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	b := make([]byte, 0, minResponseLen+len(payload))
	b = append(b, address, function, byte(len(payload)))
	b = append(b, payload...)
	return AppendChecksum(b), nil
}
