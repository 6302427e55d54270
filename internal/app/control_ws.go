// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/wheel_arbiter/internal/telemetry"
)

const (
	statusPushInterval = 200 * time.Millisecond
	wsWriteTimeout     = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocket message types
type WSMessage struct {
	Action  string `json:"action"` // any lifecycle action
	Enabled bool   `json:"enabled,omitempty"`
}

type WSResponse struct {
	Type    string            `json:"type"` // status, ack, error
	Action  string            `json:"action,omitempty"`
	Status  *telemetry.Status `json:"status,omitempty"`
	Message string            `json:"message,omitempty"`
}

// statusCache holds the latest telemetry received over MQTT.
type statusCache struct {
	mu     sync.RWMutex
	status telemetry.Status
	seq    uint64
}

func (c *statusCache) store(payload []byte) error {
	s, err := telemetry.Decode(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.status = s
	c.seq++
	c.mu.Unlock()
	return nil
}

// get returns the latest status and its sequence number; seq is 0 until the
// first message arrived.
func (c *statusCache) get() (telemetry.Status, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status, c.seq
}

func (c *statusCache) handler(_ mqtt.Client, msg mqtt.Message) {
	if err := c.store(msg.Payload()); err != nil {
		log.Printf("web: %v", err)
	}
}

// ControlSession is one browser connection of the control page.
type ControlSession struct {
	Conn *websocket.Conn
	mu   sync.Mutex
	send func(LifecycleCommand) error
}

func (s *ControlSession) write(resp WSResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.Conn.WriteJSON(resp)
}

// handle forwards msg to the controller and returns the reply for the browser.
func (s *ControlSession) handle(msg WSMessage) WSResponse {
	if !validAction(msg.Action) {
		return WSResponse{Type: "error", Message: fmt.Sprintf("unknown action: %s", msg.Action)}
	}
	if err := s.send(LifecycleCommand{Action: msg.Action, Enabled: msg.Enabled}); err != nil {
		return WSResponse{Type: "error", Action: msg.Action, Message: err.Error()}
	}
	return WSResponse{Type: "ack", Action: msg.Action}
}

// pushStatus writes every new status until done is closed or a write fails.
func (s *ControlSession) pushStatus(cache *statusCache, done <-chan struct{}) {
	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	var sent uint64
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			st, seq := cache.get()
			if seq == sent {
				continue
			}
			if err := s.write(WSResponse{Type: "status", Status: &st}); err != nil {
				return
			}
			sent = seq
		}
	}
}

// controlHandler serves the control WebSocket. Actions go to the controller
// through send; telemetry flows back from cache.
func controlHandler(cache *statusCache, send func(LifecycleCommand) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		session := &ControlSession{Conn: conn, send: send}
		done := make(chan struct{})
		defer close(done)
		go session.pushStatus(cache, done)

		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
			resp := session.handle(msg)
			if resp.Type == "ack" {
				log.Printf("web: forwarded %s", msg.Action)
			}
			if err := session.write(resp); err != nil {
				return
			}
		}
	}
}
