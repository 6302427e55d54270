// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package input turns wheel, keyboard and mouse state into a control
// command fragment once per tick.
package input

import (
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
)

// Config holds axis indices and transfer-curve constants.
type Config struct {
	SteerAxis       int
	ThrottleAxis    int
	BrakeAxis       int
	HandbrakeButton int
	SteerGain       float64
	MouseRadius     float64 // pixels
	KeySteerRate    float64 // steer units per millisecond
	KeySteerLimit   float64
}

func DefaultConfig() Config {
	return Config{
		SteerAxis:       0,
		ThrottleAxis:    2,
		BrakeAxis:       3,
		HandbrakeButton: 4,
		SteerGain:       0.4,
		MouseRadius:     200,
		KeySteerRate:    5e-4,
		KeySteerLimit:   0.7,
	}
}

// Source identifies which device produced a tick's command.
type Source int

const (
	SourceKeyboard Source = iota
	SourceMouse
	SourceWheel
)

func (s Source) String() string {
	switch s {
	case SourceWheel:
		return "wheel"
	case SourceMouse:
		return "mouse"
	}
	return "keyboard"
}

// Frame is everything the normalizer looks at for one tick.
type Frame struct {
	Joystick *control.RawSample // nil without a wheel
	Keys     KeyState
	Mouse    MouseState
	Events   []Event       // key releases and button presses since the previous tick
	Elapsed  time.Duration // since the previous tick
}

// Normalizer keeps the keyboard steering integrator between ticks.
type Normalizer struct {
	cfg        Config
	steerCache float64
}

func NewNormalizer(cfg Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize produces the steer, throttle, brake and handbrake fields of a
// command. Exactly one source contributes: the wheel when present, else the
// mouse while its button is held, else the keyboard.
func (n *Normalizer) Normalize(f Frame) (control.Command, Source) {
	n.integrateKeys(&f.Keys, f.Elapsed)

	switch {
	case f.Joystick != nil:
		return n.wheel(*f.Joystick), SourceWheel
	case f.Mouse.Anchored:
		return n.mouse(f.Mouse), SourceMouse
	}
	return n.keyboard(&f.Keys), SourceKeyboard
}

func (n *Normalizer) integrateKeys(k *KeyState, elapsed time.Duration) {
	step := n.cfg.KeySteerRate * float64(elapsed) / float64(time.Millisecond)
	switch {
	case k.Any(KeyLeft, KeyA):
		n.steerCache -= step
	case k.Any(KeyRight, KeyD):
		n.steerCache += step
	default:
		n.steerCache = 0
	}
	n.steerCache = mathx.Clamp(n.steerCache, -n.cfg.KeySteerLimit, n.cfg.KeySteerLimit)
}

func (n *Normalizer) keyboard(k *KeyState) control.Command {
	var c control.Command
	c.Steer = mathx.RoundTo(n.steerCache, 1)
	if k.Any(KeyUp, KeyW) {
		c.Throttle = 1
	}
	if k.Any(KeyDown, KeyS) {
		c.Brake = 1
	}
	c.Handbrake = k.Held(KeySpace)
	return c
}

func (n *Normalizer) wheel(s control.RawSample) control.Command {
	var c control.Command
	c.Steer = SteerCurve(s.Axis(n.cfg.SteerAxis), n.cfg.SteerGain)
	// pedals report a default before they first move; ignore it
	if s.Seen(n.cfg.ThrottleAxis) {
		c.Throttle = PedalCurve(s.Axis(n.cfg.ThrottleAxis))
	}
	if s.Seen(n.cfg.BrakeAxis) {
		c.Brake = PedalCurve(s.Axis(n.cfg.BrakeAxis))
	}
	c.Handbrake = s.Button(n.cfg.HandbrakeButton)
	return c
}

func (n *Normalizer) mouse(m MouseState) control.Command {
	r := n.cfg.MouseRadius
	lat := mathx.Clamp(float64(m.X-m.AnchorX), -r, r)
	lon := mathx.Clamp(float64(m.Y-m.AnchorY), -r, r)

	var c control.Command
	c.Steer = lat / r
	switch {
	case lon < 0:
		c.Throttle = -lon / r
	case lon > 0:
		c.Brake = lon / r
	}
	return c
}
