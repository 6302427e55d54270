// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package arbiter

import (
	"log"
	"math"

	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
)

// injectEvasive tightens the envelope when a dangerous object is closer than
// the stated braking distance. env is never modified; a clamped copy is
// returned instead.
func (a *Arbiter) injectEvasive(env *control.Envelope, speedKmh float64) *control.Envelope {
	if !a.evasive || a.distance == nil || env.Longitudinal.Max <= 0 {
		return env
	}
	v := env.Vehicle
	// the oracle may report decelerations as negative accelerations
	brakeMin := math.Abs(v.BrakeMin)
	for _, o := range env.Objects {
		if !o.Dangerous {
			continue
		}
		need := a.distance(
			speedKmh/3.6,
			a.cfg.SpeedLimitKmh/3.6,
			a.cfg.ResponseTime.Seconds(),
			v.AccelMax,
			brakeMin,
		)
		gap := o.Gap()
		if need < gap {
			continue
		}

		out := env.Clone()
		out.Longitudinal.Max = -brakeMin
		out.Restricted.Throttle = 0
		out.Restricted.Brake = max(out.Restricted.Brake, a.brakeFraction(v))
		log.Printf("arbiter: evasive brake for object %d (gap %.1f m, need %.1f m)", o.ID, gap, need)
		return out
	}
	return env
}

// brakeFraction expresses BrakeMin as a brake pedal position.
func (a *Arbiter) brakeFraction(v control.VehicleParams) float64 {
	bmax := math.Abs(v.BrakeMax)
	if bmax == 0 {
		bmax = math.Abs(a.cfg.BrakeMax)
	}
	if bmax == 0 {
		return 1
	}
	return mathx.Clamp(math.Abs(v.BrakeMin)/bmax, 0, 1)
}
