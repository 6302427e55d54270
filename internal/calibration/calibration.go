// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration drives the wheel to its left stop and back to center
// once after power-up or reset, so later force commands start from a known
// position with autocenter and friction configured.
package calibration

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/wheel"
)

// State of the calibration sweep.
type State int32

const (
	Start State = iota
	SweepLeft
	SweepRight
	Done
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case SweepLeft:
		return "sweep_left"
	case SweepRight:
		return "sweep_right"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	nudgeForce    = 0.2
	nudgePause    = 300 * time.Millisecond
	sweepForce    = 1.0
	returnForce   = 0.5
	leftStop      = -0.8
	slowZone      = -0.5
	centerEpsilon = 0.02
	frictionLevel = 2
)

// Driver is the part of the Device Link the sweep needs.
type Driver interface {
	SteerLeft(force float64)
	SteerRight(force float64)
	DisableForce()
	SetAutocenter(on bool)
	SetFriction(level uint8)
	SetRange(deg uint16)
	SetLEDs(on bool)
	Reset()
}

// Progress summarizes the sweep so far.
type Progress struct {
	State  State   `json:"state"`
	Ticks  int     `json:"ticks"`
	MinPos float64 `json:"min_pos"`
	MaxPos float64 `json:"max_pos"`
}

// Machine is the calibration state machine. Transitions are guarded by a
// lock that is only ever try-acquired; a busy guard skips the tick.
type Machine struct {
	drv   Driver
	pause func(time.Duration)

	guard sync.Mutex
	state atomic.Int32

	// return-to-center nudge, halved on every overshoot; guarded by guard
	nudge   float64
	lastDir int

	statMu   sync.Mutex
	progress Progress
}

// Option configures a Machine.
type Option func(*Machine)

// WithPause replaces time.Sleep for the nudges in Start.
func WithPause(pause func(time.Duration)) Option {
	return func(m *Machine) { m.pause = pause }
}

// New returns a machine in Start. It does not touch the device; call Reset
// to program the initial wheel state.
func New(drv Driver, opts ...Option) *Machine {
	m := &Machine{drv: drv, pause: time.Sleep}
	for _, o := range opts {
		o(m)
	}
	m.clearProgress()
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Done reports whether the runtime controllers may drive the wheel.
func (m *Machine) Done() bool {
	return m.State() == Done
}

func (m *Machine) Progress() Progress {
	m.statMu.Lock()
	defer m.statMu.Unlock()
	p := m.progress
	p.State = m.State()
	if p.Ticks == 0 {
		// JSON has no infinities
		p.MinPos, p.MaxPos = 0, 0
	}
	return p
}

func (m *Machine) clearProgress() {
	m.statMu.Lock()
	m.progress = Progress{MinPos: math.Inf(1), MaxPos: math.Inf(-1)}
	m.statMu.Unlock()
}

func (m *Machine) record(pos float64) {
	m.statMu.Lock()
	m.progress.Ticks++
	m.progress.MinPos = math.Min(m.progress.MinPos, pos)
	m.progress.MaxPos = math.Max(m.progress.MaxPos, pos)
	m.statMu.Unlock()
}

func (m *Machine) set(s State) {
	log.Printf("calibration: %v -> %v", m.State(), s)
	m.state.Store(int32(s))
}

// Reset puts the wheel into its pre-calibration state and restarts the sweep.
// Any sweep in progress is abandoned.
func (m *Machine) Reset() {
	m.guard.Lock()
	defer m.guard.Unlock()

	m.drv.Reset()
	m.drv.DisableForce()
	m.state.Store(int32(Start))
	m.clearProgress()
	m.drv.SetRange(wheel.DefaultRange)
	m.drv.SetAutocenter(false)
	m.drv.SetLEDs(false)
	log.Println("calibration: reset")
}

// Step advances the sweep using the measured wheel position in [-1,1] and
// returns the resulting state.
func (m *Machine) Step(pos float64) State {
	if !m.guard.TryLock() {
		return m.State()
	}
	defer m.guard.Unlock()

	switch m.State() {
	case Start:
		m.record(pos)
		m.drv.SteerLeft(nudgeForce)
		m.pause(nudgePause)
		m.drv.SteerRight(nudgeForce)
		m.pause(nudgePause)
		m.set(SweepLeft)

	case SweepLeft:
		m.record(pos)
		if pos > leftStop {
			m.drv.SteerLeft(sweepForce)
		} else {
			m.drv.SteerRight(returnForce)
			m.nudge, m.lastDir = nudgeForce, 1
			m.set(SweepRight)
		}

	case SweepRight:
		m.record(pos)
		switch {
		case math.Abs(pos) < centerEpsilon:
			m.drv.DisableForce()
			m.drv.SetAutocenter(true)
			m.drv.SetFriction(frictionLevel)
			m.set(Done)
		case pos <= slowZone:
			m.drv.SteerRight(returnForce)
			m.lastDir = 1
		default:
			m.towardCenter(pos)
		}
	}
	return m.State()
}

// towardCenter nudges the wheel back across zero. A direction change means
// the last nudge overshot the center band, so the force is halved.
func (m *Machine) towardCenter(pos float64) {
	dir := 1
	if pos > 0 {
		dir = -1
	}
	if dir != m.lastDir {
		m.nudge /= 2
	}
	m.lastDir = dir
	if dir > 0 {
		m.drv.SteerRight(m.nudge)
	} else {
		m.drv.SteerLeft(m.nudge)
	}
}
