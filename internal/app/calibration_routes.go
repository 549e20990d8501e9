// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/calibration"
	"github.com/relabs-tech/imu_rs485/internal/poller"
)

// calibrationStatus is the body of GET /calibration.
type calibrationStatus struct {
	Phase      string              `json:"phase"`
	Session    string              `json:"session,omitempty"`
	Captured   int                 `json:"captured"`
	Target     int                 `json:"target"`
	LastOffset *calibration.Offset `json:"last_offset,omitempty"`
	Applied    *calibration.Offset `json:"applied_offset,omitempty"`
}

// calibrationRoutes exposes the controller of a running producer over HTTP.
type calibrationRoutes struct {
	ctrl    *calibration.Controller
	loop    *poller.Loop
	samples int
	logger  *zap.Logger
}

// register installs the /calibration routes on r.
func (cr *calibrationRoutes) register(r *gin.Engine) {
	g := r.Group("/calibration")
	g.GET("", cr.status)
	g.POST("/accel/start", cr.startCapture)
	g.POST("/accel/finish", cr.finishCapture)
	g.POST("/accel/abort", func(c *gin.Context) {
		cr.reply(c, cr.ctrl.AbortAccelCapture())
	})
	g.POST("/accel-device", cr.command(cr.ctrl.TriggerAccelCalibration))
	g.POST("/reset-angles", cr.command(cr.ctrl.ResetAngles))
	g.POST("/field/begin", cr.command(cr.ctrl.BeginFieldCalibration))
	g.POST("/field/end", cr.command(cr.ctrl.EndFieldCalibration))
}

func (cr *calibrationRoutes) snapshot() calibrationStatus {
	st := calibrationStatus{
		Phase:   cr.ctrl.Phase().String(),
		Session: cr.ctrl.SessionID(),
	}
	st.Captured, st.Target = cr.ctrl.Progress()
	if off, ok := cr.ctrl.LastOffset(); ok {
		st.LastOffset = &off
	}
	if off, ok := cr.loop.Offset(); ok {
		st.Applied = &off
	}
	return st
}

func (cr *calibrationRoutes) status(c *gin.Context) {
	c.JSON(http.StatusOK, cr.snapshot())
}

func (cr *calibrationRoutes) startCapture(c *gin.Context) {
	n := cr.samples
	if raw := c.Query("samples"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "samples must be a positive integer"})
			return
		}
		n = v
	}
	cr.reply(c, cr.ctrl.BeginAccelCapture(n))
}

// finishCapture computes the offset and installs it on the poll loop.
func (cr *calibrationRoutes) finishCapture(c *gin.Context) {
	off, err := cr.ctrl.FinishAccelCapture()
	if err != nil {
		cr.reply(c, err)
		return
	}
	cr.loop.SetOffset(off)
	cr.logger.Info("calibration: offset applied over http",
		zap.String("session", off.Session),
		zap.Int("samples", off.Samples),
	)
	c.JSON(http.StatusOK, off)
}

func (cr *calibrationRoutes) command(op func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		cr.reply(c, op(c.Request.Context()))
	}
}

// reply maps controller errors to status codes: state conflicts are 409,
// anything else came from the device link.
func (cr *calibrationRoutes) reply(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, cr.snapshot())
	case errors.Is(err, calibration.ErrWrongPhase), errors.Is(err, calibration.ErrInsufficientSamples):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		cr.logger.Warn("calibration: request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
