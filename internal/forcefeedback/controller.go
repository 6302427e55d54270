// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package forcefeedback turns the arbiter's steering target into a wheel
// force.
package forcefeedback

import (
	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
)

const (
	// Deadband is the position error below which no force is applied.
	Deadband = 0.02
	// baseForce is added to every non-zero force so small errors still move
	// the wheel.
	baseForce = 0.2
	// restrictGain strengthens the pull while the driver is being
	// overridden.
	restrictGain = 1.5
)

// Forcer is the part of the device link the controller drives.
type Forcer interface {
	SteerLeft(force float64)
	SteerRight(force float64)
	DisableForce()
}

// Direction of the applied force.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

// Output describes what the controller asked the wheel to do.
type Output struct {
	Direction Direction `json:"direction"`
	Force     float64   `json:"force"`
}

type Controller struct {
	dev  Forcer
	last Output
}

func New(dev Forcer) *Controller {
	return &Controller{dev: dev}
}

// Last returns the output of the previous Update.
func (c *Controller) Last() Output { return c.last }

// Update pulls the wheel at position toward target.
func (c *Controller) Update(position float64, target arbiter.Target) Output {
	var force float64
	switch target.Kind {
	case arbiter.TargetAutopilot:
		force = mathx.Abs(position-target.Steer)/2 + baseForce
	case arbiter.TargetRestricted:
		force = (mathx.Abs(position-target.Steer)/2 + baseForce) * restrictGain
	default:
		return c.disable()
	}

	if mathx.Abs(target.Steer-position) < Deadband {
		return c.disable()
	}
	force = mathx.Clamp(force, 0, 1)
	if target.Steer > position {
		c.dev.SteerRight(force)
		c.last = Output{Direction: Right, Force: force}
	} else {
		c.dev.SteerLeft(force)
		c.last = Output{Direction: Left, Force: force}
	}
	return c.last
}

// Disable releases the wheel.
func (c *Controller) Disable() { c.disable() }

func (c *Controller) disable() Output {
	c.dev.DisableForce()
	c.last = Output{}
	return c.last
}
