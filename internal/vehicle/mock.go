// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vehicle

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
	"github.com/relabs-tech/wheel_arbiter/internal/control"
)

const (
	mockAccel = 3.0 // m/s² at full throttle
	mockBrake = 8.0 // m/s² at full brake
	mockDrag  = 0.3 // m/s² rolling resistance
)

// MockActuator is a point-mass vehicle for running the controller without
// hardware. Its autopilot weaves smoothly around the lane center.
type MockActuator struct {
	mu        sync.Mutex
	start     time.Time
	last      time.Time
	speed     float64 // m/s, signed
	autopilot bool
	cmd       control.Command
	now       func() time.Time
}

func NewMockActuator() *MockActuator {
	now := time.Now()
	return &MockActuator{start: now, last: now, now: time.Now}
}

func (m *MockActuator) Apply(_ context.Context, cmd control.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.now()
	dt := t.Sub(m.last).Seconds()
	m.last = t
	m.cmd = cmd

	dir := 1.0
	if cmd.Reverse {
		dir = -1
	}
	accel := dir * cmd.Throttle * mockAccel
	decel := cmd.Brake*mockBrake + mockDrag
	if cmd.Handbrake {
		decel += mockBrake
	}

	v := m.speed + accel*dt
	// braking never reverses the direction of travel
	switch {
	case v > 0:
		v = math.Max(0, v-decel*dt)
	case v < 0:
		v = math.Min(0, v+decel*dt)
	}
	m.speed = v
	return nil
}

func (m *MockActuator) SpeedKmh() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return math.Abs(m.speed) * 3.6
}

// LastCommand returns the most recently applied command.
func (m *MockActuator) LastCommand() control.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd
}

func (m *MockActuator) Autopilot() (*arbiter.AutopilotState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.autopilot {
		return nil, false
	}
	elapsed := m.now().Sub(m.start).Seconds()
	return &arbiter.AutopilotState{Command: control.Command{
		Steer:    0.3 * math.Sin(elapsed*0.5),
		Throttle: 0.35,
		Gear:     1,
	}}, true
}

func (m *MockActuator) SetAutopilot(on bool) {
	m.mu.Lock()
	m.autopilot = on
	m.mu.Unlock()
}

func (m *MockActuator) Close() error { return nil }
