// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration sequences accelerometer bias capture and the
// device-side calibration commands.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/protocol"
)

var (
	// ErrInsufficientSamples is returned when a capture is finished before
	// its target was reached.
	ErrInsufficientSamples = errors.New("insufficient samples")
	// ErrWrongPhase is returned when an operation is not valid in the
	// current phase.
	ErrWrongPhase = errors.New("wrong calibration phase")
)

// Phase of a calibration session.
type Phase int

const (
	Idle Phase = iota
	AccelCapture
	FieldCalibrating
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AccelCapture:
		return "accel_capture"
	case FieldCalibrating:
		return "field_calibrating"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CommandSender writes a vendor command with exclusive use of the transport.
type CommandSender interface {
	SendCommand(ctx context.Context, cmd protocol.Command) error
}

// Controller is the calibration state machine. Bias capture is fed by the
// poll loop through Capture; device commands go out through the sender.
type Controller struct {
	sender CommandSender
	logger *zap.Logger
	settle time.Duration

	mu       sync.Mutex
	phase    Phase
	session  string
	target   int
	buf      []imu.Vec3
	captured chan struct{}
	last     *Offset
	onPhase  []func(Phase)
}

// NewController returns an idle controller. settle is how long command
// operations wait after the write so the device can act on it.
func NewController(sender CommandSender, logger *zap.Logger, settle time.Duration) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{sender: sender, logger: logger, settle: settle}
}

// OnPhaseChange registers fn to be called after every phase transition.
// Callbacks run in registration order with the controller lock released.
func (c *Controller) OnPhaseChange(fn func(Phase)) {
	c.mu.Lock()
	c.onPhase = append(c.onPhase, fn)
	c.mu.Unlock()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SessionID identifies the current or most recent session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LastOffset returns the offset of the most recent successful capture.
func (c *Controller) LastOffset() (Offset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Offset{}, false
	}
	return *c.last, true
}

// BeginAccelCapture starts collecting target acceleration samples from the
// poll path. Any previous buffer is discarded.
func (c *Controller) BeginAccelCapture(target int) error {
	if target < 1 {
		return fmt.Errorf("capture target must be positive, got %d", target)
	}

	c.mu.Lock()
	if c.phase != Idle {
		p := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot begin accel capture while %s", ErrWrongPhase, p)
	}
	c.phase = AccelCapture
	c.session = uuid.NewString()
	c.target = target
	c.buf = make([]imu.Vec3, 0, target)
	c.captured = make(chan struct{})
	session := c.session
	hooks := c.hooks()
	c.mu.Unlock()

	c.logger.Info("calibration: accel capture started", zap.String("session", session), zap.Int("target", target))
	notify(hooks, AccelCapture)
	return nil
}

// Capture records the acceleration of s while a capture is running.
// Samples beyond the target and samples without acceleration are ignored.
func (c *Controller) Capture(s imu.Sample) {
	if !s.Groups.Has(imu.GroupAccel) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != AccelCapture || len(c.buf) >= c.target {
		return
	}
	c.buf = append(c.buf, s.Accel)
	if len(c.buf) == c.target {
		close(c.captured)
	}
}

// Progress reports how many samples have been captured out of the target.
func (c *Controller) Progress() (captured, target int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf), c.target
}

// WaitCaptured blocks until the capture target is reached or ctx is done.
func (c *Controller) WaitCaptured(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != AccelCapture {
		c.mu.Unlock()
		return fmt.Errorf("%w: no accel capture running", ErrWrongPhase)
	}
	ch := c.captured
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FinishAccelCapture computes the per-axis mean of the captured samples and
// returns to Idle. With fewer samples than the target the capture keeps
// running and ErrInsufficientSamples is returned.
func (c *Controller) FinishAccelCapture() (Offset, error) {
	c.mu.Lock()
	if c.phase != AccelCapture {
		p := c.phase
		c.mu.Unlock()
		return Offset{}, fmt.Errorf("%w: cannot finish accel capture while %s", ErrWrongPhase, p)
	}
	if len(c.buf) < c.target {
		n, target := len(c.buf), c.target
		c.mu.Unlock()
		return Offset{}, fmt.Errorf("%w: captured %d of %d", ErrInsufficientSamples, n, target)
	}

	off := Offset{Mean: mean(c.buf), Samples: len(c.buf), Session: c.session}
	c.last = &off
	c.phase = Idle
	c.buf = nil
	hooks := c.hooks()
	c.mu.Unlock()

	c.logger.Info("calibration: accel capture finished",
		zap.String("session", off.Session),
		zap.Int("samples", off.Samples),
		zap.Float64("mean_x", off.Mean.X),
		zap.Float64("mean_y", off.Mean.Y),
		zap.Float64("mean_z", off.Mean.Z),
	)
	notify(hooks, Idle)
	return off, nil
}

// AbortAccelCapture discards a running capture.
func (c *Controller) AbortAccelCapture() error {
	c.mu.Lock()
	if c.phase != AccelCapture {
		p := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot abort accel capture while %s", ErrWrongPhase, p)
	}
	c.phase = Idle
	c.buf = nil
	session := c.session
	hooks := c.hooks()
	c.mu.Unlock()

	c.logger.Info("calibration: accel capture aborted", zap.String("session", session))
	notify(hooks, Idle)
	return nil
}

// BeginFieldCalibration sends the begin-field-calibration command and
// enters FieldCalibrating. The caller rotates the device through all three
// axes; completeness is judged by the firmware, not here.
func (c *Controller) BeginFieldCalibration(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != Idle {
		p := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot begin field calibration while %s", ErrWrongPhase, p)
	}
	if err := c.sender.SendCommand(ctx, protocol.CmdBeginFieldCalibration); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("begin field calibration: %w", err)
	}
	c.phase = FieldCalibrating
	c.session = uuid.NewString()
	session := c.session
	hooks := c.hooks()
	c.mu.Unlock()

	c.logger.Info("calibration: field calibration started", zap.String("session", session))
	notify(hooks, FieldCalibrating)
	return c.wait(ctx)
}

// EndFieldCalibration sends the end-field-calibration command and returns
// to Idle. If the write fails the session stays in FieldCalibrating so the
// caller can retry.
func (c *Controller) EndFieldCalibration(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != FieldCalibrating {
		p := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot end field calibration while %s", ErrWrongPhase, p)
	}
	if err := c.sender.SendCommand(ctx, protocol.CmdEndFieldCalibration); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("end field calibration: %w", err)
	}
	c.phase = Idle
	session := c.session
	hooks := c.hooks()
	c.mu.Unlock()

	c.logger.Info("calibration: field calibration finished", zap.String("session", session))
	notify(hooks, Idle)
	return c.wait(ctx)
}

// TriggerAccelCalibration asks the firmware to run its own accelerometer
// calibration. The device must be level and still.
func (c *Controller) TriggerAccelCalibration(ctx context.Context) error {
	return c.sendIdle(ctx, protocol.CmdAccelCalibration)
}

// ResetAngles zeroes the device's angle output.
func (c *Controller) ResetAngles(ctx context.Context) error {
	return c.sendIdle(ctx, protocol.CmdResetAngles)
}

func (c *Controller) sendIdle(ctx context.Context, cmd protocol.Command) error {
	c.mu.Lock()
	if c.phase != Idle {
		p := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot send %s while %s", ErrWrongPhase, cmd.Name, p)
	}
	err := c.sender.SendCommand(ctx, cmd)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}

	c.logger.Info("calibration: command sent", zap.String("command", cmd.Name))
	return c.wait(ctx)
}

func (c *Controller) wait(ctx context.Context) error {
	if c.settle <= 0 {
		return nil
	}
	t := time.NewTimer(c.settle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hooks must be called with c.mu held.
func (c *Controller) hooks() []func(Phase) {
	out := make([]func(Phase), len(c.onPhase))
	copy(out, c.onPhase)
	return out
}

func notify(hooks []func(Phase), p Phase) {
	for _, fn := range hooks {
		fn(p)
	}
}
