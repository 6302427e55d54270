// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wheel_arbiter/internal/config"
	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
	"github.com/relabs-tech/wheel_arbiter/internal/telemetry"
)

const (
	mockOracleRate     = 50 * time.Millisecond
	mockCorridorPeriod = 8 * time.Second
	mockThrottleMax    = 0.5
)

// mockOracle restricts the last command seen on telemetry to a steering
// corridor that slowly narrows and widens, and caps the throttle.
type mockOracle struct {
	start time.Time

	mu   sync.Mutex
	last control.Command
}

func (o *mockOracle) observe(s telemetry.Status) {
	o.mu.Lock()
	o.last = s.Command
	o.mu.Unlock()
}

// corridor returns the allowed |steer| at now, between 0.1 and 0.6.
func (o *mockOracle) corridor(now time.Time) float64 {
	phase := 2 * math.Pi * float64(now.Sub(o.start)) / float64(mockCorridorPeriod)
	return 0.35 + 0.25*math.Sin(phase)
}

func (o *mockOracle) envelope(now time.Time) control.Envelope {
	o.mu.Lock()
	cmd := o.last
	o.mu.Unlock()

	lim := o.corridor(now)
	r := cmd
	r.Steer = mathx.Clamp(cmd.Steer, -lim, lim)
	r.Throttle = math.Min(cmd.Throttle, mockThrottleMax)
	return control.Envelope{
		Valid:        true,
		Restricted:   r,
		Longitudinal: control.Range{Min: -8, Max: 2},
		Lateral:      control.LateralRange{Left: lim, Right: lim},
		Vehicle:      control.VehicleParams{AccelMax: 3.5, BrakeMin: 4, BrakeMax: 8},
	}
}

// RunMockOracle publishes mock restriction envelopes until ctx is cancelled.
func RunMockOracle(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDOracle)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	o := &mockOracle{start: time.Now()}
	err = subscribe(client, cfg.Topics.Telemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := telemetry.Decode(msg.Payload())
		if err != nil {
			log.Printf("oracle_mock: %v", err)
			return
		}
		o.observe(s)
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(mockOracleRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			payload, err := json.Marshal(o.envelope(t))
			if err != nil {
				log.Printf("json marshal error: %v", err)
				continue
			}
			token := client.Publish(cfg.Topics.Envelope, 0, false, payload)
			token.Wait()
			if token.Error() != nil {
				log.Printf("MQTT publish error: %v", token.Error())
			}
		}
	}
}
