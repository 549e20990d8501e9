// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

// Checksum computes the Modbus CRC-16 (reflected polynomial 0xA001,
// initial value 0xFFFF) over data.
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// AppendChecksum appends the checksum of data to data, low byte first.
func AppendChecksum(data []byte) []byte {
	crc := Checksum(data)
	return append(data, byte(crc), byte(crc>>8))
}

// VerifyChecksum reports whether the last two bytes of frame hold the
// checksum of everything before them.
func VerifyChecksum(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 2
	got := uint16(frame[n]) | uint16(frame[n+1])<<8
	return got == Checksum(frame[:n])
}
