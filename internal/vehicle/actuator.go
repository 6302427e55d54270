// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package vehicle connects the controller to the vehicle: the actuator that
// receives commands, the speed sources and the brake light.
package vehicle

import (
	"context"

	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
	"github.com/relabs-tech/wheel_arbiter/internal/control"
)

// Actuator applies control commands to the vehicle and reports its state.
type Actuator interface {
	Apply(ctx context.Context, cmd control.Command) error
	SpeedKmh() float64
	// Autopilot returns what the vehicle's autopilot commands. ok is false
	// while the autopilot is off or has not reported yet.
	Autopilot() (state *arbiter.AutopilotState, ok bool)
	SetAutopilot(on bool)
	Close() error
}

// SpeedSource reports the current ground speed.
type SpeedSource interface {
	SpeedKmh() float64
}
