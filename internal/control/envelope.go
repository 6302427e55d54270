// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package control

// Range is a closed acceleration interval in m/s².
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// LateralRange holds the allowed lateral acceleration per side.
type LateralRange struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// VehicleParams are the longitudinal dynamics the oracle evaluated the
// situation with.
type VehicleParams struct {
	AccelMax float64 `json:"accel_max"`
	BrakeMin float64 `json:"brake_min"`
	// BrakeMax is the strongest deceleration the vehicle can apply; used to
	// express BrakeMin as a pedal fraction.
	BrakeMax float64 `json:"brake_max,omitempty"`
}

// ObjectState is the per-object safety state reported by the oracle.
type ObjectState struct {
	ID           uint64  `json:"id"`
	Dangerous    bool    `json:"dangerous"`
	Distance     float64 `json:"distance"` // center to center, meters
	EgoLength    float64 `json:"ego_length"`
	ObjectLength float64 `json:"object_length"`
}

// Gap is the bumper-to-bumper distance to the object.
func (o ObjectState) Gap() float64 {
	return o.Distance - 0.5*(o.EgoLength+o.ObjectLength)
}

// Envelope is the restriction the safety oracle computed for this tick.
// A nil *Envelope means no restriction is available.
type Envelope struct {
	Valid        bool          `json:"valid"`
	Restricted   Command       `json:"restricted"`
	Longitudinal Range         `json:"longitudinal"`
	Lateral      LateralRange  `json:"lateral"`
	Vehicle      VehicleParams `json:"vehicle"`
	Objects      []ObjectState `json:"objects,omitempty"`
}

// Clone returns a deep copy so callers can adjust it without touching the
// oracle's value.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	c := *e
	if e.Objects != nil {
		c.Objects = append([]ObjectState(nil), e.Objects...)
	}
	return &c
}
