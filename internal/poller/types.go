// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/protocol"
)

// Transport is a byte-oriented duplex link to a single device.
// Read returns at most max bytes; an empty result means the wait expired.
type Transport interface {
	Write(p []byte) (int, error)
	Read(max int, timeout time.Duration) ([]byte, error)
}

// Drainer is implemented by transports that can discard bytes already
// buffered or still arriving on the line. The loop drains before a request
// that follows a failed cycle, so the tail of a late or split reply is not
// read as the head of the next one.
type Drainer interface {
	Drain() error
}

var (
	// ErrNoResponse is reported for a cycle whose read returned nothing.
	ErrNoResponse = errors.New("no response")
	// ErrUnexpectedResponse is reported when a valid frame does not echo
	// the request's address and function code.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrAlreadyRunning is returned by Run when the loop is active.
	ErrAlreadyRunning = errors.New("poll loop already running")
)

// TransportError wraps a failure of the link itself. It ends the loop.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Observer receives poll results. Both methods run synchronously on the
// poll goroutine, in registration order; a slow observer delays the next
// cycle.
type Observer interface {
	OnSample(s imu.Sample)
	OnCycleFailure(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Sample  func(imu.Sample)
	Failure func(error)
}

func (f ObserverFuncs) OnSample(s imu.Sample) {
	if f.Sample != nil {
		f.Sample(s)
	}
}

func (f ObserverFuncs) OnCycleFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}

// Capturer taps decoded samples before filtering. The calibration
// controller uses it to collect bias samples from the normal poll path.
type Capturer interface {
	Capture(s imu.Sample)
}

// Config describes what the loop reads and how often.
type Config struct {
	Address         byte
	StartRegister   uint16
	Decoder         imu.Decoder
	FilterWindow    int
	Interval        time.Duration
	ResponseTimeout time.Duration
	// FailureLogRate caps failure warnings per second. Zero logs every failure.
	FailureLogRate float64
}

// Reason classifies a cycle failure into a short stable label for metrics
// and status messages.
func Reason(err error) string {
	var te *TransportError
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &te):
		return "transport"
	case errors.Is(err, ErrNoResponse):
		return "no_response"
	case errors.Is(err, protocol.ErrTooShort):
		return "too_short"
	case errors.Is(err, protocol.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, protocol.ErrByteCountMismatch):
		return "byte_count"
	case errors.Is(err, ErrUnexpectedResponse):
		return "unexpected_response"
	case errors.Is(err, imu.ErrInsufficientPayload):
		return "insufficient_payload"
	default:
		return "other"
	}
}
