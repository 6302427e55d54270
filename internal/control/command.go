// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

// Command is the vehicle control command handed to the actuator once per tick.
type Command struct {
	Steer           float64 `json:"steer"`    // [-1,1], negative is left
	Throttle        float64 `json:"throttle"` // [0,1]
	Brake           float64 `json:"brake"`    // [0,1]
	Handbrake       bool    `json:"hand_brake"`
	Gear            int     `json:"gear"`
	Reverse         bool    `json:"reverse"`
	ManualGearShift bool    `json:"manual_gear_shift,omitempty"`
}

// Equal compares the fields the safety oracle is allowed to restrict.
func (c Command) Equal(o Command) bool {
	return c.LongitudinalEqual(o) && c.Steer == o.Steer
}

// LongitudinalEqual reports whether throttle and brake match.
func (c Command) LongitudinalEqual(o Command) bool {
	return c.Throttle == o.Throttle && c.Brake == o.Brake
}
