// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wheel

import (
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
)

// DefaultRange is the rotation range programmed on reset, in degrees.
const DefaultRange = 360

// vibratePulse is how long a single vibration cue runs before slot F1 stops.
const vibratePulse = 50 * time.Millisecond

// Transport is the write side of a wheel connection.
type Transport interface {
	io.Writer
	io.Closer
}

// Mode is the state of the constant-force slot.
type Mode int

const (
	NoForce Mode = iota
	ConstantForce
	Vibrating
)

func (m Mode) String() string {
	switch m {
	case NoForce:
		return "no_force"
	case ConstantForce:
		return "constant_force"
	case Vibrating:
		return "vibrating"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Link serializes logical force-feedback operations into raw reports.
// All writes go through one mutex; with no transport every call is a no-op.
type Link struct {
	mu  sync.Mutex
	dev Transport

	// last known device state, used to skip redundant writes
	leds       bool
	autocenter bool
	mode       Mode
	level      uint8
	vibrating  bool

	failed bool
	after  func(time.Duration, func())
}

// NewLink wraps t. t may be nil when no wheel is connected.
func NewLink(t Transport) *Link {
	l := &Link{after: func(d time.Duration, f func()) { time.AfterFunc(d, f) }}
	l.attach(t)
	return l
}

// Attach replaces the transport, e.g. after a hot-plug. The previous one is
// returned so the caller can close it.
func (l *Link) Attach(t Transport) Transport {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.dev
	l.attach(t)
	return prev
}

func (l *Link) attach(t Transport) {
	l.dev = t
	l.failed = false
	// power-on defaults of the wheel
	l.leds = true
	l.autocenter = true
	l.mode = NoForce
	l.level = 0
	l.vibrating = false
}

// Detach drops the transport and returns it.
func (l *Link) Detach() Transport {
	return l.Attach(nil)
}

// Available reports whether reports are actually reaching a device.
func (l *Link) Available() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dev != nil && !l.failed
}

// Mode returns the current constant-force slot mode and quantized level.
func (l *Link) Mode() (Mode, uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.vibrating && l.mode == NoForce {
		return Vibrating, 0
	}
	return l.mode, l.level
}

func (l *Link) active() bool {
	return l.dev != nil && !l.failed
}

// write must be called with mu held.
func (l *Link) write(reports ...Report) {
	for _, r := range reports {
		if !l.active() {
			return
		}
		n, err := l.dev.Write(r[:])
		if err == nil && n != ReportSize {
			err = ErrShortWrite
		}
		if err != nil {
			log.Printf("wheel: report %#02x failed, force feedback disabled: %v", r[0], err)
			l.failed = true
			return
		}
	}
}

// WriteRaw sends an arbitrary report. Only the debug tool uses this; it does
// not update the tracked state.
func (l *Link) WriteRaw(r Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(r)
}

func (l *Link) SetRange(deg uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() {
		return
	}
	log.Printf("wheel: range %d deg", deg)
	l.write(rangeReport(deg))
}

func (l *Link) SetLEDs(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() || l.leds == on {
		return
	}
	l.write(ledsReport(on))
	l.leds = on
}

func (l *Link) SetAutocenter(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() || l.autocenter == on {
		return
	}
	log.Printf("wheel: autocenter %v", on)
	l.write(autocenterReports(on)...)
	l.autocenter = on
}

func (l *Link) SetFriction(level uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() {
		return
	}
	l.write(frictionReport(level))
}

// SetConstantForce programs slot F0. The write is skipped when the slot
// already plays the same level.
func (l *Link) SetConstantForce(level uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() {
		return
	}
	if l.mode == ConstantForce && l.level == level {
		return
	}
	l.write(constantForceReport(level))
	l.mode = ConstantForce
	l.level = level
}

func (l *Link) DisableForce() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() {
		return
	}
	if l.mode == NoForce && l.level == 0 {
		return
	}
	l.write(disableForceReport())
	l.mode = NoForce
	l.level = 0
}

// SetForce maps a directional value (0 full left, 0.5 neutral, 1 full
// right) onto slot F0.
func (l *Link) SetForce(value float64) {
	if value == 0.5 {
		l.DisableForce()
		return
	}
	value = mathx.Clamp(value, 0, 1)
	l.SetConstantForce(uint8(math.Round(math.Abs(value-1) * 255)))
}

// SteerLeft pushes the wheel left with force in [0,1].
func (l *Link) SteerLeft(force float64) {
	l.SetForce(math.Max(0, 0.5-0.5*force))
}

// SteerRight pushes the wheel right with force in [0,1].
func (l *Link) SteerRight(force float64) {
	l.SetForce(math.Min(1, 0.5+0.5*force))
}

func (l *Link) VibrateOn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() {
		return
	}
	l.write(vibrateOnReport())
	l.vibrating = true
}

func (l *Link) VibrateOff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() {
		return
	}
	l.write(vibrateOffReport())
	l.vibrating = false
}

// Vibrate plays one short pulse. The stop report is scheduled instead of
// slept on, so a control tick never waits for it.
func (l *Link) Vibrate() {
	l.mu.Lock()
	if !l.active() {
		l.mu.Unlock()
		return
	}
	l.write(vibrateOnReport())
	l.vibrating = true
	l.mu.Unlock()
	l.after(vibratePulse, l.VibrateOff)
}

// Reset stops every effect slot.
func (l *Link) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active() {
		return
	}
	log.Println("wheel: reset")
	l.write(resetReports()...)
	l.vibrating = false
}

// Close closes the transport, if any.
func (l *Link) Close() error {
	if t := l.Detach(); t != nil {
		return t.Close()
	}
	return nil
}
