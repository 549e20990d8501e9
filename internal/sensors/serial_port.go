// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// SerialConfig selects the RS-485 adapter and line settings (always 8N1).
type SerialConfig struct {
	PortName string
	BaudRate int
	// RS485 switches the UART into kernel RS-485 mode (RTS drives the
	// transceiver direction). USB adapters with automatic direction
	// control do not need it and usually reject the ioctl.
	RS485 bool
	// CharTimeout is the tty inter-character timeout; the driver rounds
	// it to 100ms steps.
	CharTimeout time.Duration
}

// SerialPort adapts a serial device to the poll loop's transport.
type SerialPort struct {
	name string
	rwc  io.ReadWriteCloser
}

// OpenSerial opens the port described by cfg.
func OpenSerial(cfg SerialConfig) (*SerialPort, error) {
	if cfg.PortName == "" {
		return nil, errors.New("serial port name is required")
	}
	opts := serial.OpenOptions{
		PortName:              cfg.PortName,
		BaudRate:              uint(cfg.BaudRate),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: charTimeoutMS(cfg.CharTimeout),
	}
	if cfg.RS485 {
		opts.Rs485Enable = true
		opts.Rs485RtsHighDuringSend = true
		opts.Rs485RtsHighAfterSend = false
	}

	rwc, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.PortName, err)
	}
	return &SerialPort{name: cfg.PortName, rwc: rwc}, nil
}

// NewSerialPort wraps an already open stream.
func NewSerialPort(name string, rwc io.ReadWriteCloser) *SerialPort {
	return &SerialPort{name: name, rwc: rwc}
}

func charTimeoutMS(d time.Duration) uint {
	ms := d.Milliseconds()
	if ms < 100 {
		return 100
	}
	return uint((ms + 99) / 100 * 100)
}

// Write sends p.
func (p *SerialPort) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}

// Read collects up to max bytes. It returns early once data has arrived
// and the line goes quiet, and returns an empty slice when nothing arrives
// before timeout. Only real I/O failures are returned as errors.
func (p *SerialPort) Read(max int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, max)
	total := 0
	deadline := time.Now().Add(timeout)

	for total < max {
		n, err := p.rwc.Read(buf[total:])
		total += n
		if err != nil && !errors.Is(err, io.EOF) {
			return buf[:total], fmt.Errorf("read %s: %w", p.name, err)
		}
		// the tty reports an expired inter-character timer as EOF
		if n == 0 {
			if total > 0 || !time.Now().Before(deadline) {
				break
			}
			continue
		}
	}
	return buf[:total], nil
}

// maxDrainReads bounds Drain on a line that never goes quiet.
const maxDrainReads = 64

// Drain discards input until the line is quiet for one inter-character
// timeout.
func (p *SerialPort) Drain() error {
	buf := make([]byte, 256)
	for i := 0; i < maxDrainReads; i++ {
		n, err := p.rwc.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("drain %s: %w", p.name, err)
		}
		if n == 0 {
			return nil
		}
	}
	return fmt.Errorf("drain %s: line still busy after %d reads", p.name, maxDrainReads)
}

// Close releases the port.
func (p *SerialPort) Close() error {
	return p.rwc.Close()
}

// Name is the device path.
func (p *SerialPort) Name() string { return p.name }
