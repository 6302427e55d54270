// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package oracle

import "math"

// BrakingDistance is the distance the vehicle covers when it keeps
// accelerating with accelMax for responseTime (never beyond maxSpeed) and
// then brakes with brakeMin until it stops. Speeds are in m/s and
// accelerations are magnitudes in m/s².
func BrakingDistance(speed, maxSpeed, responseTime, accelMax, brakeMin float64) float64 {
	brakeMin = math.Abs(brakeMin)
	if brakeMin == 0 {
		return math.Inf(1)
	}
	d, v := responseDistance(max(speed, 0), maxSpeed, max(responseTime, 0), max(accelMax, 0))
	return d + v*v/(2*brakeMin)
}

// responseDistance returns the distance covered and the speed reached
// during the response time.
func responseDistance(v0, vmax, t, a float64) (float64, float64) {
	if a == 0 || v0 >= vmax {
		return v0 * t, v0
	}
	tc := (vmax - v0) / a
	if tc >= t {
		return v0*t + 0.5*a*t*t, v0 + a*t
	}
	return v0*tc + 0.5*a*tc*tc + vmax*(t-tc), vmax
}
