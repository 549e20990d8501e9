// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_rs485/internal/config"
	"github.com/relabs-tech/imu_rs485/internal/httpserver"
	"github.com/relabs-tech/imu_rs485/internal/imu"
	"github.com/relabs-tech/imu_rs485/internal/orientation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// liveMessage is what /ws clients receive.
type liveMessage struct {
	Type   string            `json:"type"` // "sample", "pose" or "status"
	Sample *imu.Sample       `json:"sample,omitempty"`
	Pose   *orientation.Pose `json:"pose,omitempty"`
	Status *StatusMessage    `json:"status,omitempty"`
}

// webState keeps the latest values and the connected websocket clients.
type webState struct {
	logger *zap.Logger

	mu         sync.RWMutex
	sample     imu.Sample
	haveSample bool
	pose       orientation.Pose
	havePose   bool
	clients    map[chan []byte]struct{}
}

func newWebState(logger *zap.Logger) *webState {
	return &webState{logger: logger, clients: make(map[chan []byte]struct{})}
}

func (w *webState) setSample(s imu.Sample) {
	w.mu.Lock()
	w.sample, w.haveSample = s, true
	w.mu.Unlock()
	w.broadcast(liveMessage{Type: "sample", Sample: &s})
}

func (w *webState) setPose(p orientation.Pose) {
	w.mu.Lock()
	w.pose, w.havePose = p, true
	w.mu.Unlock()
	w.broadcast(liveMessage{Type: "pose", Pose: &p})
}

func (w *webState) setStatus(st StatusMessage) {
	w.broadcast(liveMessage{Type: "status", Status: &st})
}

// broadcast sends m to every client. Slow clients miss messages.
func (w *webState) broadcast(m liveMessage) {
	payload, err := json.Marshal(m)
	if err != nil {
		w.logger.Warn("web: marshal live message", zap.Error(err))
		return
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	for ch := range w.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (w *webState) join() chan []byte {
	ch := make(chan []byte, 16)
	w.mu.Lock()
	w.clients[ch] = struct{}{}
	w.mu.Unlock()
	return ch
}

func (w *webState) leave(ch chan []byte) {
	w.mu.Lock()
	delete(w.clients, ch)
	w.mu.Unlock()
}

// handleMessage routes an MQTT payload by topic.
func (w *webState) handleMessage(cfg *config.Config, topic string, payload []byte) {
	var err error
	switch topic {
	case cfg.TopicIMU:
		var s imu.Sample
		if err = json.Unmarshal(payload, &s); err == nil {
			w.setSample(s)
		}
	case cfg.TopicPose:
		var p orientation.Pose
		if err = json.Unmarshal(payload, &p); err == nil {
			w.setPose(p)
		}
	case cfg.TopicStatus:
		var st StatusMessage
		if err = json.Unmarshal(payload, &st); err == nil {
			w.setStatus(st)
		}
	}
	if err != nil {
		w.logger.Warn("web: MQTT payload unmarshal error", zap.String("topic", topic), zap.Error(err))
	}
}

// routes installs the API, websocket and static routes on r.
func (w *webState) routes(r *gin.Engine, staticDir string) {
	r.GET("/api/sample", func(c *gin.Context) {
		w.mu.RLock()
		s, ok := w.sample, w.haveSample
		w.mu.RUnlock()
		if !ok {
			c.String(http.StatusServiceUnavailable, "no data yet")
			return
		}
		c.JSON(http.StatusOK, s)
	})
	r.GET("/api/orientation", func(c *gin.Context) {
		w.mu.RLock()
		p, ok := w.pose, w.havePose
		w.mu.RUnlock()
		if !ok {
			c.String(http.StatusServiceUnavailable, "no data yet")
			return
		}
		c.JSON(http.StatusOK, p)
	})
	r.GET("/ws", func(c *gin.Context) {
		w.serveWS(c.Writer, c.Request)
	})
	if staticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(staticDir))))
	}
}

func (w *webState) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("web: websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := w.join()
	defer w.leave(ch)

	// The reader only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// RunWeb subscribes to the producer's topics and serves the latest values,
// a websocket live stream and the static files in ./web.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	state := newWebState(logger)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	for _, topic := range []string{cfg.TopicIMU, cfg.TopicPose, cfg.TopicStatus} {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			state.handleMessage(cfg, msg.Topic(), msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		logger.Info("web: subscribed", zap.String("topic", topic))
	}

	srv := httpserver.New(fmt.Sprintf(":%d", cfg.WebServerPort), nil, client.IsConnected)
	state.routes(srv.Engine(), "web")

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", zap.String("addr", srv.Addr()))
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
