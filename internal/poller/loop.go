// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package poller runs the request/response cycle against the device and
// fans decoded, filtered samples out to observers.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/imu_rs485/internal/calibration"
	"github.com/relabs-tech/imu_rs485/internal/filter"
	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/protocol"
)

// Loop owns the transport. Only one request is outstanding at a time: the
// device has no request IDs, so a late reply would be attributed to the
// next request.
type Loop struct {
	cfg       Config
	transport Transport
	logger    *zap.Logger
	filters   *filter.Bank
	failLog   *rate.Limiter
	now       func() time.Time

	// xfer is a one-slot semaphore granting exclusive transport access.
	xfer chan struct{}

	stopped atomic.Bool
	running atomic.Bool
	// resync asks the next exchange to drain the line first. It starts set
	// so bytes left over from before the loop started are dropped.
	resync atomic.Bool

	mu        sync.RWMutex
	observers []Observer
	capturer  Capturer
	offset    *calibration.Offset
}

// New returns a loop polling t. The filter bank is created here and lives
// as long as the loop.
func New(t Transport, cfg Config, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 100 * time.Millisecond
	}
	if cfg.Decoder.AccelDivisor <= 0 {
		cfg.Decoder = imu.NewDecoder(cfg.Decoder.Layout, 0)
	}
	l := &Loop{
		cfg:       cfg,
		transport: t,
		logger:    logger,
		filters:   filter.NewBank(cfg.FilterWindow),
		now:       time.Now,
		xfer:      make(chan struct{}, 1),
	}
	if cfg.FailureLogRate > 0 {
		l.failLog = rate.NewLimiter(rate.Limit(cfg.FailureLogRate), 1)
	}
	l.resync.Store(true)
	return l
}

// Subscribe registers o. Observers are called in registration order.
func (l *Loop) Subscribe(o Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

// SetCapturer installs the pre-filter tap. Pass nil to remove it.
func (l *Loop) SetCapturer(c Capturer) {
	l.mu.Lock()
	l.capturer = c
	l.mu.Unlock()
}

// SetOffset applies o to the filtered acceleration of every later sample.
func (l *Loop) SetOffset(o calibration.Offset) {
	l.mu.Lock()
	l.offset = &o
	l.mu.Unlock()
	l.logger.Info("poller: accel offset applied",
		zap.String("session", o.Session),
		zap.Float64("mean_x", o.Mean.X),
		zap.Float64("mean_y", o.Mean.Y),
		zap.Float64("mean_z", o.Mean.Z),
	)
}

// ClearOffset stops applying any acceleration offset.
func (l *Loop) ClearOffset() {
	l.mu.Lock()
	l.offset = nil
	l.mu.Unlock()
}

// Offset returns the offset currently applied.
func (l *Loop) Offset() (calibration.Offset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.offset == nil {
		return calibration.Offset{}, false
	}
	return *l.offset, true
}

// Stop asks the loop to finish. It takes effect at the start of the next
// cycle, so Run may return up to one interval later. A stopped loop cannot
// be restarted.
func (l *Loop) Stop() {
	l.stopped.Store(true)
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Run polls until Stop is called or ctx is cancelled, both of which return
// nil. A failure of the link itself ends the loop with a *TransportError.
// Malformed, foreign or missing responses are reported to observers and
// polling continues.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	l.logger.Info("poller: started",
		zap.Uint8("address", l.cfg.Address),
		zap.Uint16("start_register", l.cfg.StartRegister),
		zap.String("layout", l.cfg.Decoder.Layout.Name),
		zap.Duration("interval", l.cfg.Interval),
	)

	var timer *time.Timer
	for {
		if l.stopped.Load() {
			l.logger.Info("poller: stopped")
			return nil
		}
		if ctx.Err() != nil {
			l.logger.Info("poller: context done", zap.Error(ctx.Err()))
			return nil
		}

		if _, err := l.PollOnce(ctx); err != nil {
			var te *TransportError
			if errors.As(err, &te) {
				l.logger.Error("poller: transport failed", zap.Error(err))
				return err
			}
		}

		if l.cfg.Interval <= 0 {
			continue
		}
		if timer == nil {
			timer = time.NewTimer(l.cfg.Interval)
			defer timer.Stop()
		} else {
			timer.Reset(l.cfg.Interval)
		}
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

// PollOnce runs a single cycle. Cycle failures are reported to observers
// and returned; a *TransportError is returned without notifying observers.
func (l *Loop) PollOnce(ctx context.Context) (imu.Sample, error) {
	raw, err := l.exchange(ctx)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return imu.Sample{}, err
		}
		l.fail(err)
		return imu.Sample{}, err
	}

	s, err := l.decode(raw)
	if err != nil {
		l.fail(err)
		return imu.Sample{}, err
	}

	l.mu.RLock()
	capturer := l.capturer
	offset := l.offset
	observers := l.observers
	l.mu.RUnlock()

	if capturer != nil {
		capturer.Capture(s)
	}

	out := l.filters.Apply(s)
	if offset != nil && out.Groups.Has(imu.GroupAccel) {
		out = out.WithAccel(offset.Apply(out.Accel))
	}

	for _, o := range observers {
		o.OnSample(out)
	}
	return out, nil
}

// SendCommand writes a vendor command between poll cycles. The transport
// is held only for the write; the device does not answer these commands.
func (l *Loop) SendCommand(ctx context.Context, cmd protocol.Command) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	_, err := l.transport.Write(cmd.Frame())
	l.release()
	if err != nil {
		return &TransportError{Op: "write " + cmd.Name, Err: err}
	}
	l.logger.Info("poller: command sent", zap.String("command", cmd.String()))
	return nil
}

func (l *Loop) exchange(ctx context.Context) ([]byte, error) {
	req := protocol.BuildReadRequest(l.cfg.Address, protocol.FuncReadRegisters, l.cfg.StartRegister, l.cfg.Decoder.Layout.Count)

	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()

	if l.resync.Load() {
		if d, ok := l.transport.(Drainer); ok {
			if err := d.Drain(); err != nil {
				return nil, &TransportError{Op: "drain", Err: err}
			}
		}
		l.resync.Store(false)
	}

	if _, err := l.transport.Write(req); err != nil {
		return nil, &TransportError{Op: "write", Err: err}
	}
	resp, err := l.transport.Read(protocol.ResponseLength(l.cfg.Decoder.Layout.Count), l.cfg.ResponseTimeout)
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	if len(resp) == 0 {
		return nil, ErrNoResponse
	}
	return resp, nil
}

func (l *Loop) decode(raw []byte) (imu.Sample, error) {
	frame, err := protocol.ParseResponse(raw)
	if err != nil {
		return imu.Sample{}, err
	}
	if frame.Address != l.cfg.Address || frame.Function != protocol.FuncReadRegisters {
		return imu.Sample{}, ErrUnexpectedResponse
	}
	return l.cfg.Decoder.Decode(frame.Payload, l.now())
}

func (l *Loop) fail(err error) {
	// Whatever went wrong, the line may still hold part of a reply.
	l.resync.Store(true)

	if l.failLog == nil || l.failLog.Allow() {
		l.logger.Warn("poller: cycle failed", zap.Error(err))
	}

	l.mu.RLock()
	observers := l.observers
	l.mu.RUnlock()
	for _, o := range observers {
		o.OnCycleFailure(err)
	}
}

func (l *Loop) acquire(ctx context.Context) error {
	select {
	case l.xfer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) release() {
	<-l.xfer
}
