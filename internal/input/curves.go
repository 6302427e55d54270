// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import (
	"math"

	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
)

// SteerCurve compensates the wheel's mechanical travel: small rotations
// steer gently, the last part of the range steers hard.
func SteerCurve(x, gain float64) float64 {
	return mathx.Clamp(gain*math.Tan(1.1*x), -1, 1)
}

// PedalCurve maps a pedal axis (1 released, -1 floored) to [0,1].
func PedalCurve(x float64) float64 {
	arg := -0.7*x + 1.4
	if arg <= 0 {
		return 0
	}
	v := 1.6 + (2.05*math.Log10(arg)-1.2)/0.92
	return mathx.Clamp(v, 0, 1)
}
