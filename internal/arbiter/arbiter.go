// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package arbiter merges driver input, autopilot output and the safety
// oracle's restriction envelope into the command sent to the vehicle.
package arbiter

import (
	"log"
	"strings"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
)

// Mode says who is driving.
type Mode int

const (
	Manual Mode = iota
	Autopilot
)

func (m Mode) String() string {
	if m == Autopilot {
		return "autopilot"
	}
	return "manual"
}

// RestrictionState is whether the envelope changed the last command.
type RestrictionState int

const (
	RestrictionInactive RestrictionState = iota
	RestrictionActive
)

func (r RestrictionState) String() string {
	if r == RestrictionActive {
		return "restriction_active"
	}
	return "restriction_inactive"
}

// Flags report which parts of the command the envelope overrode.
type Flags struct {
	Lateral      bool `json:"lateral"`
	Longitudinal bool `json:"longitudinal"`
}

// Active reports whether any restriction applied.
func (f Flags) Active() bool { return f.Lateral || f.Longitudinal }

// TargetKind selects how the force-feedback controller treats a tick.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetAutopilot
	TargetRestricted
)

// Target is the steering position the wheel should be pulled toward.
type Target struct {
	Kind  TargetKind
	Steer float64
}

// AutopilotState is what the vehicle's autopilot is commanding.
type AutopilotState struct {
	Command control.Command
}

// Lights receives brake-light edges.
type Lights interface {
	SetBrake(on bool) error
}

// Vibrator plays the haptic cue when a lateral restriction engages.
type Vibrator interface {
	Vibrate()
}

// BrakingDistanceFunc returns the distance needed to stop when the vehicle
// may keep accelerating for responseTime before braking with brakeMin.
// Speeds in m/s, accelerations as positive magnitudes in m/s².
type BrakingDistanceFunc func(speed, maxSpeed, responseTime, accelMax, brakeMin float64) float64

type Config struct {
	SpeedLimitKmh float64
	FadeIn        time.Duration
	ResponseTime  time.Duration
	// BrakeMax is used to express the evasive brake as a pedal fraction
	// when the envelope does not carry it.
	BrakeMax float64
}

func DefaultConfig() Config {
	return Config{
		SpeedLimitKmh: 30,
		FadeIn:        500 * time.Millisecond,
		ResponseTime:  300 * time.Millisecond,
		BrakeMax:      8,
	}
}

// Tick is the input for one arbitration step.
type Tick struct {
	Now       time.Time
	Candidate control.Command // from the input normalizer
	SpeedKmh  float64
	Autopilot *AutopilotState   // nil when unavailable
	Envelope  *control.Envelope // nil when the oracle has nothing
	Suspended bool              // restriction held off by the driver this tick
}

// Result is the outcome of one arbitration step.
type Result struct {
	Command      control.Command
	Flags        Flags
	Target       Target
	Cue          bool // vibration cue fired this tick
	Notification string
}

// Arbiter owns the command state between ticks. It is driven from a single
// control loop and is not safe for concurrent use.
type Arbiter struct {
	cfg      Config
	lights   Lights
	cue      Vibrator
	distance BrakingDistanceFunc

	mode        Mode
	restriction RestrictionState
	restrict    bool
	evasive     bool

	gear       int
	manualGear bool

	flags       Flags
	lastLateral time.Time
	fadeFrom    float64

	brakeLight    bool
	interventions int
}

// New creates an arbiter in manual mode with restriction enabled. lights,
// cue and distance may be nil.
func New(cfg Config, lights Lights, cue Vibrator, distance BrakingDistanceFunc) *Arbiter {
	return &Arbiter{
		cfg:      cfg,
		lights:   lights,
		cue:      cue,
		distance: distance,
		restrict: true,
	}
}

func (a *Arbiter) Mode() Mode                    { return a.mode }
func (a *Arbiter) Restriction() RestrictionState { return a.restriction }
func (a *Arbiter) Interventions() int            { return a.interventions }
func (a *Arbiter) RestrictionEnabled() bool      { return a.restrict }
func (a *Arbiter) EvasiveEnabled() bool          { return a.evasive }
func (a *Arbiter) Gear() int                     { return a.gear }

// SetAutopilot switches between manual and autopilot mode.
func (a *Arbiter) SetAutopilot(on bool) {
	if on {
		a.mode = Autopilot
	} else {
		a.mode = Manual
	}
	log.Printf("arbiter: %v", a.mode)
}

func (a *Arbiter) ToggleAutopilot() bool {
	a.SetAutopilot(a.mode != Autopilot)
	return a.mode == Autopilot
}

// SetRestrictionEnabled turns envelope enforcement on or off.
func (a *Arbiter) SetRestrictionEnabled(on bool) {
	a.restrict = on
	if !on {
		log.Println("arbiter: restriction disabled")
	}
}

func (a *Arbiter) ToggleRestriction() bool {
	a.SetRestrictionEnabled(!a.restrict)
	return a.restrict
}

func (a *Arbiter) SetEvasiveEnabled(on bool) {
	a.evasive = on
}

// ToggleReverse flips between first and reverse gear.
func (a *Arbiter) ToggleReverse() {
	if a.gear < 0 {
		a.gear = 1
	} else {
		a.gear = -1
	}
}

func (a *Arbiter) ToggleManualGear() bool {
	a.manualGear = !a.manualGear
	return a.manualGear
}

// ShiftGear moves the gear by delta while manual shifting is on. Reverse
// (-1) is the lowest gear.
func (a *Arbiter) ShiftGear(delta int) {
	if !a.manualGear {
		return
	}
	a.gear = max(-1, a.gear+delta)
}

// Tick runs one arbitration step.
func (a *Arbiter) Tick(in Tick) Result {
	if a.mode == Autopilot && in.Autopilot != nil {
		cmd := in.Autopilot.Command
		a.setFlags(Flags{})
		a.updateBrakeLight(cmd.Brake)
		return Result{
			Command: cmd,
			Target:  Target{Kind: TargetAutopilot, Steer: cmd.Steer},
		}
	}

	cmd := in.Candidate
	cmd.Gear = a.gear
	cmd.ManualGearShift = a.manualGear
	cmd.Reverse = cmd.Gear < 0
	if in.SpeedKmh >= a.cfg.SpeedLimitKmh {
		cmd.Throttle = 0
	}

	var res Result
	switch {
	case in.Envelope == nil || !in.Envelope.Valid || !a.restrict:
		a.setFlags(Flags{})
	case in.Suspended:
		a.setFlags(Flags{})
		res.Notification = "restriction temporarily inactive"
	default:
		env := a.injectEvasive(in.Envelope, in.SpeedKmh)
		cmd, res.Cue = a.apply(cmd, env.Restricted, in.Now)
		if a.flags.Lateral {
			res.Target = Target{Kind: TargetRestricted, Steer: env.Restricted.Steer}
		}
		if a.flags.Active() {
			res.Notification = restrictionNotice(a.flags)
		}
	}

	a.updateBrakeLight(cmd.Brake)
	res.Command = cmd
	res.Flags = a.flags
	return res
}

// apply compares the candidate with the restricted command and returns the
// command to emit and whether the vibration cue fired.
func (a *Arbiter) apply(cmd, restricted control.Command, now time.Time) (control.Command, bool) {
	if cmd.Equal(restricted) {
		a.setFlags(Flags{})
		cmd.Steer = mathx.Lerp(a.fadeFrom, cmd.Steer, a.fade(now))
		return cmd, false
	}

	f := Flags{
		Longitudinal: !cmd.LongitudinalEqual(restricted),
		Lateral:      cmd.Steer != restricted.Steer,
	}
	cue := f.Lateral && !a.flags.Lateral
	if cue && a.cue != nil {
		a.cue.Vibrate()
	}

	if f.Lateral {
		a.lastLateral = now
		a.fadeFrom = restricted.Steer
		cmd.Steer = restricted.Steer
	} else {
		cmd.Steer = mathx.Lerp(a.fadeFrom, restricted.Steer, a.fade(now))
	}
	cmd.Throttle = restricted.Throttle
	cmd.Brake = restricted.Brake

	a.setFlags(f)
	return cmd, cue
}

// fade is the interpolation factor since the last lateral restriction.
func (a *Arbiter) fade(now time.Time) float64 {
	if a.cfg.FadeIn <= 0 || a.lastLateral.IsZero() {
		return 1
	}
	return mathx.Clamp(float64(now.Sub(a.lastLateral))/float64(a.cfg.FadeIn), 0, 1)
}

func (a *Arbiter) setFlags(f Flags) {
	if f.Active() && !a.flags.Active() {
		a.interventions++
	}
	a.flags = f
	if f.Active() {
		a.restriction = RestrictionActive
	} else {
		a.restriction = RestrictionInactive
	}
}

func (a *Arbiter) updateBrakeLight(brake float64) {
	on := brake > 0
	if on == a.brakeLight {
		return
	}
	a.brakeLight = on
	if a.lights == nil {
		return
	}
	if err := a.lights.SetBrake(on); err != nil {
		log.Printf("arbiter: brake light: %v", err)
	}
}

func restrictionNotice(f Flags) string {
	var parts []string
	if f.Lateral {
		parts = append(parts, "Lateral")
	}
	if f.Longitudinal {
		parts = append(parts, "Longitudinal")
	}
	return "restricts: " + strings.Join(parts, ", ")
}
