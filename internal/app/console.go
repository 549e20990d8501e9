// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/poller"
)

const tableWidth = 50

// RunConsole polls the device directly and prints every filtered sample
// as a table on out. Failed cycles are printed as one line each.
func RunConsole(ctx context.Context, cfg *config.Config, logger *zap.Logger, mock bool, out io.Writer) error {
	dev, err := openDevice(cfg, mock, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	loop := newLoop(cfg, dev, logger)
	loop.Subscribe(poller.ObserverFuncs{
		Sample: func(s imu.Sample) {
			fmt.Fprint(out, FormatSampleTable(s))
		},
		Failure: func(err error) {
			fmt.Fprintf(out, "[FAIL] %s: %v\n", poller.Reason(err), err)
		},
	})

	err = loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// FormatSampleTable renders the groups present in s as a boxed table.
func FormatSampleTable(s imu.Sample) string {
	var b strings.Builder
	heavy := strings.Repeat("=", tableWidth)
	light := strings.Repeat("-", tableWidth)

	fmt.Fprintf(&b, "\n%s\n%s\n%s\n", heavy, center("Sensor Data", tableWidth), heavy)

	rows := 0
	row := func(title, unit string, v imu.Vec3) {
		if rows > 0 {
			b.WriteString(light + "\n")
		}
		rows++
		fmt.Fprintf(&b, "%s:\n", title)
		fmt.Fprintf(&b, "    X: %8.3f%s |   Y: %8.3f%s |   Z: %8.3f%s\n", v.X, unit, v.Y, unit, v.Z, unit)
	}
	if s.Groups.Has(imu.GroupAccel) {
		row("Acceleration (G)", " G  ", s.Accel)
	}
	if s.Groups.Has(imu.GroupGyro) {
		row("Gyro (°/s)", "°/s ", s.Gyro)
	}
	if s.Groups.Has(imu.GroupAngle) {
		row("Angle (°)", "°   ", s.Angle)
	}
	if s.Groups.Has(imu.GroupMag) {
		row("Magnetic field (raw)", "    ", s.Mag)
	}
	if s.Groups.Has(imu.GroupTemp) {
		if rows > 0 {
			b.WriteString(light + "\n")
		}
		fmt.Fprintf(&b, "Temperature: %.2f °C\n", s.Temp)
	}
	b.WriteString(heavy + "\n")
	return b.String()
}

func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
