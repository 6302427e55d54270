// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package oracle receives restriction envelopes from the external safety
// oracle.
package oracle

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wheel_arbiter/internal/control"
)

// Source hands out the most recent envelope.
type Source interface {
	// Latest returns nil when no envelope is available or it is older
	// than the source's maximum age at now.
	Latest(now time.Time) *control.Envelope
}

// MQTTSource keeps the last envelope published on an MQTT topic.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	maxAge time.Duration
	now    func() time.Time

	mu  sync.RWMutex
	env *control.Envelope
	at  time.Time

	warnOnce sync.Once
}

func NewMQTTSource(client mqtt.Client, topic string, maxAge time.Duration) *MQTTSource {
	return &MQTTSource{
		client: client,
		topic:  topic,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Subscribe starts receiving envelopes.
func (s *MQTTSource) Subscribe() error {
	token := s.client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.store(msg.Payload(), s.now()); err != nil {
			log.Printf("oracle: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
	}
	log.Printf("oracle: subscribed to %s", s.topic)
	return nil
}

// Unsubscribe stops receiving envelopes.
func (s *MQTTSource) Unsubscribe() {
	s.client.Unsubscribe(s.topic).Wait()
}

func (s *MQTTSource) store(payload []byte, at time.Time) error {
	var env control.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("envelope unmarshal error: %w", err)
	}
	s.mu.Lock()
	s.env = &env
	s.at = at
	s.mu.Unlock()
	return nil
}

func (s *MQTTSource) Latest(now time.Time) *control.Envelope {
	s.mu.RLock()
	env, at := s.env, s.at
	s.mu.RUnlock()

	if env == nil {
		return nil
	}
	if now.Sub(at) > s.maxAge {
		s.warnOnce.Do(func() {
			log.Printf("oracle: envelope older than %v, running unrestricted", s.maxAge)
		})
		return nil
	}
	return env
}
