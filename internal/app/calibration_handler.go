// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/calibration"
	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/poller"
)

// errQuit is returned when the operator types q at a prompt.
var errQuit = errors.New("calibration aborted by operator")

// CalibrationReport summarises a guided calibration run. It is printed at
// the end and not stored anywhere.
type CalibrationReport struct {
	At               time.Time `json:"at"`
	AnglesReset      bool      `json:"angles_reset"`
	AccelBias        *imu.Vec3 `json:"accel_bias,omitempty"`
	AccelBiasSamples int       `json:"accel_bias_samples,omitempty"`
	Session          string    `json:"session,omitempty"`
	DeviceAccelCal   bool      `json:"device_accel_calibration"`
	FieldCalibration bool      `json:"field_calibration"`
	Corrected        *imu.Vec3 `json:"corrected_accel,omitempty"`
}

// calibrationWizard walks the operator through the calibration steps while
// the poll loop keeps running.
type calibrationWizard struct {
	loop    *poller.Loop
	ctrl    *calibration.Controller
	in      *bufio.Reader
	out     io.Writer
	samples int
	timeout time.Duration
	logger  *zap.Logger

	latest   chan imu.Sample
	lines    chan inputLine
	readOnce sync.Once
}

func newCalibrationWizard(cfg *config.Config, loop *poller.Loop, ctrl *calibration.Controller, in io.Reader, out io.Writer, logger *zap.Logger) *calibrationWizard {
	w := &calibrationWizard{
		loop:    loop,
		ctrl:    ctrl,
		in:      bufio.NewReader(in),
		out:     out,
		samples: cfg.CalibrationSamples,
		timeout: cfg.CalibrationTimeout(),
		logger:  logger,
		latest:  make(chan imu.Sample, 1),
		lines:   make(chan inputLine, 1),
	}
	loop.Subscribe(poller.ObserverFuncs{Sample: w.keepLatest})
	return w
}

// keepLatest holds on to the newest sample without blocking the poll loop.
func (w *calibrationWizard) keepLatest(s imu.Sample) {
	select {
	case <-w.latest:
	default:
	}
	select {
	case w.latest <- s:
	default:
	}
}

type inputLine struct {
	text string
	err  error
}

// readLines feeds operator input to w.lines. It runs until in is
// exhausted; a prompt abandoned on cancellation leaves it blocked on the
// reader, which ends with the process.
func (w *calibrationWizard) readLines() {
	for {
		line, err := w.in.ReadString('\n')
		w.lines <- inputLine{text: line, err: err}
		if err != nil {
			return
		}
	}
}

// prompt prints msg and waits for a line. It reports false when the
// operator typed s to skip. It gives up when ctx ends, which is how a
// failed poll loop interrupts the wizard.
func (w *calibrationWizard) prompt(ctx context.Context, msg string) (bool, error) {
	fmt.Fprintf(w.out, "%s\n  [Enter] continue, [s] skip, [q] quit: ", msg)
	w.readOnce.Do(func() { go w.readLines() })

	var in inputLine
	select {
	case in = <-w.lines:
	case <-ctx.Done():
		return false, context.Cause(ctx)
	}
	if in.err != nil && (in.err != io.EOF || in.text == "") {
		return false, fmt.Errorf("read operator input: %w", in.err)
	}
	switch strings.ToLower(strings.TrimSpace(in.text)) {
	case "q":
		return false, errQuit
	case "s":
		fmt.Fprintln(w.out, "  skipped")
		return false, nil
	default:
		return true, nil
	}
}

func (w *calibrationWizard) run(ctx context.Context) (CalibrationReport, error) {
	report := CalibrationReport{At: time.Now()}

	fmt.Fprintln(w.out, "=== Guided IMU calibration ===")

	ok, err := w.prompt(ctx, "Step 1/4: place the sensor level and still to reset the angle reference.")
	if err != nil {
		return report, err
	}
	if ok {
		if err := w.ctrl.ResetAngles(ctx); err != nil {
			return report, err
		}
		report.AnglesReset = true
		fmt.Fprintln(w.out, "  angles reset")
	}

	ok, err = w.prompt(ctx, fmt.Sprintf("Step 2/4: keep the sensor still to capture %d accelerometer samples.", w.samples))
	if err != nil {
		return report, err
	}
	if ok {
		off, err := w.captureBias(ctx)
		if err != nil {
			return report, err
		}
		bias := off.Mean
		report.AccelBias = &bias
		report.AccelBiasSamples = off.Samples
		report.Session = off.Session
		fmt.Fprintf(w.out, "  offsets calculated -> X: %.3f, Y: %.3f, Z: %.3f\n", bias.X, bias.Y, bias.Z)
	}

	ok, err = w.prompt(ctx, "Step 3/4: run the device's own accelerometer calibration (sensor level and still).")
	if err != nil {
		return report, err
	}
	if ok {
		if err := w.ctrl.TriggerAccelCalibration(ctx); err != nil {
			return report, err
		}
		report.DeviceAccelCal = true
		fmt.Fprintln(w.out, "  acceleration calibration completed")
	}

	ok, err = w.prompt(ctx, "Step 4/4: magnetic field calibration. Rotate the sensor slowly around all three axes after continuing.")
	if err != nil {
		return report, err
	}
	if ok {
		if err := w.ctrl.BeginFieldCalibration(ctx); err != nil {
			return report, err
		}
		fmt.Fprintln(w.out, "  field calibration running, rotate the sensor now")
		_, quit := w.prompt(ctx, "  Continue when every axis has been rotated.")
		// The device stays in field mode until told otherwise, so end it
		// even when the operator quits here.
		if err := w.ctrl.EndFieldCalibration(ctx); err != nil {
			return report, err
		}
		report.FieldCalibration = true
		fmt.Fprintln(w.out, "  field calibration finished")
		if quit != nil {
			return report, quit
		}
	}

	if s, ok := w.latestSample(ctx); ok && s.Groups.Has(imu.GroupAccel) {
		corrected := s.Accel
		report.Corrected = &corrected
	}
	return report, nil
}

// captureBias collects samples through the poll loop and installs the
// resulting offset on it.
func (w *calibrationWizard) captureBias(ctx context.Context) (calibration.Offset, error) {
	if err := w.ctrl.BeginAccelCapture(w.samples); err != nil {
		return calibration.Offset{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.ctrl.WaitCaptured(waitCtx) }()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				n, target := w.ctrl.Progress()
				_ = w.ctrl.AbortAccelCapture()
				return calibration.Offset{}, fmt.Errorf("accel capture stopped at %d/%d samples: %w", n, target, err)
			}
			off, err := w.ctrl.FinishAccelCapture()
			if err != nil {
				return calibration.Offset{}, err
			}
			w.loop.SetOffset(off)
			return off, nil
		case <-tick.C:
			n, target := w.ctrl.Progress()
			fmt.Fprintf(w.out, "  %d / %d\n", n, target)
		}
	}
}

// latestSample waits briefly for a sample produced after the last step.
func (w *calibrationWizard) latestSample(ctx context.Context) (imu.Sample, bool) {
	select {
	case <-w.latest:
	default:
	}
	t := time.NewTimer(time.Second)
	defer t.Stop()
	select {
	case s := <-w.latest:
		return s, true
	case <-t.C:
		return imu.Sample{}, false
	case <-ctx.Done():
		return imu.Sample{}, false
	}
}

// RunCalibration runs the guided calibration against the configured
// device, reading operator input from in and writing prompts to out.
func RunCalibration(ctx context.Context, cfg *config.Config, logger *zap.Logger, mock bool, in io.Reader, out io.Writer) error {
	dev, err := openDevice(cfg, mock, logger)
	if err != nil {
		return err
	}
	defer dev.Close()
	return runCalibration(ctx, cfg, logger, dev, in, out)
}

// runCalibration drives the wizard over t. A fatal poll loop error cancels
// the wizard and is returned in place of whatever the wizard was doing.
func runCalibration(ctx context.Context, cfg *config.Config, logger *zap.Logger, t poller.Transport, in io.Reader, out io.Writer) error {
	loop := newLoop(cfg, t, logger)
	ctrl := newController(cfg, loop, nil, logger)
	wizard := newCalibrationWizard(cfg, loop, ctrl, in, out, logger)

	loopCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	loopErr := make(chan error, 1)
	go func() {
		err := loop.Run(loopCtx)
		if err != nil {
			stop(err)
		}
		loopErr <- err
	}()

	report, err := wizard.run(loopCtx)
	stop(nil)
	if lerr := <-loopErr; lerr != nil {
		err = lerr
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil {
		logger.Warn("calibration: report encode failed", zap.Error(encErr))
	}
	// An interrupt from the terminal ends the run like q does.
	if errors.Is(err, errQuit) || (errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		fmt.Fprintln(out, "calibration stopped by operator")
		return nil
	}
	return err
}
