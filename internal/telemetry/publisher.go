// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry publishes the controller status over MQTT.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
	"github.com/relabs-tech/wheel_arbiter/internal/calibration"
	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/forcefeedback"
)

// Status is one controller snapshot.
type Status struct {
	Time           time.Time            `json:"time"`
	State          string               `json:"state"` // calibration state
	Calibration    calibration.Progress `json:"calibration"`
	Autopilot      bool                 `json:"autopilot"`
	Restriction    string               `json:"restriction"`
	RestrictionOn  bool                 `json:"restriction_enabled"`
	Evasive        bool                 `json:"evasive"`
	Source         string               `json:"source"` // input device that drove the tick
	Command        control.Command      `json:"command"`
	Flags          arbiter.Flags        `json:"flags"`
	Force          forcefeedback.Output `json:"force"`
	Interventions  int                  `json:"interventions"`
	Notification   string               `json:"notification,omitempty"`
	SpeedKmh       float64              `json:"speed_kmh"`
	WheelAvailable bool                 `json:"wheel_available"`
}

// publisher is the part of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends Status messages retained, so late subscribers get the
// latest one. Messages closer together than the interval are dropped unless
// the notification or the flags changed.
//
// Publish only hands the payload over; Run talks to the broker. A payload
// that has not gone out yet is replaced by the next one.
type Publisher struct {
	client   publisher
	topic    string
	interval time.Duration
	timeout  time.Duration
	out      chan []byte

	last     time.Time
	lastNote string
	lastFlag arbiter.Flags
}

func NewPublisher(client mqtt.Client, topic string, interval time.Duration) *Publisher {
	return newPublisher(client, topic, interval)
}

func newPublisher(client publisher, topic string, interval time.Duration) *Publisher {
	return &Publisher{
		client:   client,
		topic:    topic,
		interval: interval,
		timeout:  time.Second,
		out:      make(chan []byte, 1),
	}
}

// Publish queues s if it is due and never waits for the broker. It returns
// false when s was skipped. Publish must be called from one goroutine.
func (p *Publisher) Publish(s Status) (bool, error) {
	changed := s.Notification != p.lastNote || s.Flags != p.lastFlag
	if !changed && !p.last.IsZero() && s.Time.Sub(p.last) < p.interval {
		return false, nil
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("telemetry marshal: %w", err)
	}
	select {
	case p.out <- payload:
	default:
		// replace the stale payload
		select {
		case <-p.out:
		default:
		}
		p.out <- payload
	}

	p.last = s.Time
	p.lastNote = s.Notification
	p.lastFlag = s.Flags
	return true, nil
}

// Run sends queued payloads until ctx is cancelled. Failures are logged once
// per streak.
func (p *Publisher) Run(ctx context.Context) {
	failed := false
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-p.out:
			if err := p.send(payload); err != nil {
				if !failed {
					log.Printf("telemetry: %v", err)
				}
				failed = true
			} else if failed {
				log.Println("telemetry: publishing again")
				failed = false
			}
		}
	}
}

func (p *Publisher) send(payload []byte) error {
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("telemetry publish to %s timed out", p.topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("telemetry publish: %w", token.Error())
	}
	return nil
}

// Decode parses a Status payload.
func Decode(payload []byte) (Status, error) {
	var s Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return Status{}, fmt.Errorf("telemetry unmarshal error: %w", err)
	}
	return s, nil
}
