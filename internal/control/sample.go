// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

// RawSample is one tick's snapshot of a multi-axis input device.
// Axes are normalized to [-1,1]; AxisSeen marks axes that produced at least
// one event since the device was opened.
type RawSample struct {
	Axes     []float64
	AxisSeen []bool
	Buttons  []bool
}

// Axis returns axis i, or 0 when the device does not expose it.
func (s RawSample) Axis(i int) float64 {
	if i < 0 || i >= len(s.Axes) {
		return 0
	}
	return s.Axes[i]
}

// Seen reports whether axis i has produced a real sample.
func (s RawSample) Seen(i int) bool {
	if i < 0 || i >= len(s.AxisSeen) {
		return false
	}
	return s.AxisSeen[i]
}

// Button returns button i, or false when it does not exist.
func (s RawSample) Button(i int) bool {
	if i < 0 || i >= len(s.Buttons) {
		return false
	}
	return s.Buttons[i]
}
