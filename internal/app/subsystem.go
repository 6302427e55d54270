// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
	"github.com/relabs-tech/wheel_arbiter/internal/calibration"
	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/forcefeedback"
	"github.com/relabs-tech/wheel_arbiter/internal/input"
	"github.com/relabs-tech/wheel_arbiter/internal/oracle"
	"github.com/relabs-tech/wheel_arbiter/internal/telemetry"
	"github.com/relabs-tech/wheel_arbiter/internal/vehicle"
	"github.com/relabs-tech/wheel_arbiter/internal/wheel"
)

// SubsystemConfig collects the tunables of the per-tick pipeline.
type SubsystemConfig struct {
	Input      input.Config
	Arbiter    arbiter.Config
	Bindings   input.Bindings
	Evasive    bool
	WheelRange uint16 // degrees, 0 keeps the calibration default
}

// Subsystem runs one control tick: normalize input, arbitrate against the
// restriction envelope, drive the vehicle and push force feedback to the
// wheel. It is driven by a single loop and is not safe for concurrent use.
type Subsystem struct {
	link     *wheel.Link
	calib    *calibration.Machine
	norm     *input.Normalizer
	arb      *arbiter.Arbiter
	ff       *forcefeedback.Controller
	bindings input.Bindings
	actuator vehicle.Actuator
	speed    vehicle.SpeedSource

	steerAxis   int
	wheelRange  uint16
	now         func() time.Time
	applyFailed bool
	status      telemetry.Status
}

// NewSubsystem wires the pipeline. speed may be nil to use the actuator's
// own speed; lights may be nil.
func NewSubsystem(cfg SubsystemConfig, link *wheel.Link, actuator vehicle.Actuator, speed vehicle.SpeedSource, lights arbiter.Lights, opts ...calibration.Option) *Subsystem {
	if speed == nil {
		speed = actuator
	}
	if lights == nil {
		lights = vehicle.LogLights{}
	}
	s := &Subsystem{
		link:       link,
		calib:      calibration.New(link, opts...),
		norm:       input.NewNormalizer(cfg.Input),
		arb:        arbiter.New(cfg.Arbiter, lights, link, oracle.BrakingDistance),
		ff:         forcefeedback.New(link),
		bindings:   cfg.Bindings,
		actuator:   actuator,
		speed:      speed,
		steerAxis:  cfg.Input.SteerAxis,
		wheelRange: cfg.WheelRange,
		now:        time.Now,
	}
	s.arb.SetEvasiveEnabled(cfg.Evasive)
	return s
}

// ArbitrateAndDrive runs one tick and returns the command sent to the
// vehicle with the restriction flags.
func (s *Subsystem) ArbitrateAndDrive(ctx context.Context, f input.Frame, ap *arbiter.AutopilotState, env *control.Envelope) (control.Command, arbiter.Flags) {
	now := s.now()
	s.apply(s.bindings.Resolve(f.Events))

	cand, src := s.norm.Normalize(f)
	speed := s.speed.SpeedKmh()
	res := s.arb.Tick(arbiter.Tick{
		Now:       now,
		Candidate: cand,
		SpeedKmh:  speed,
		Autopilot: ap,
		Envelope:  env,
		Suspended: f.Keys.Ctrl(),
	})

	s.link.SetLEDs(res.Flags.Active())
	s.driveWheel(f.Joystick, res.Target)

	if err := s.actuator.Apply(ctx, res.Command); err != nil {
		if !s.applyFailed {
			log.Printf("controller: actuator: %v", err)
			s.applyFailed = true
		}
	} else if s.applyFailed {
		log.Println("controller: actuator recovered")
		s.applyFailed = false
	}

	s.status = telemetry.Status{
		Time:           now,
		State:          s.calib.State().String(),
		Calibration:    s.calib.Progress(),
		Autopilot:      s.arb.Mode() == arbiter.Autopilot,
		Restriction:    s.arb.Restriction().String(),
		RestrictionOn:  s.arb.RestrictionEnabled(),
		Evasive:        s.arb.EvasiveEnabled(),
		Source:         src.String(),
		Command:        res.Command,
		Flags:          res.Flags,
		Force:          s.ff.Last(),
		Interventions:  s.arb.Interventions(),
		Notification:   res.Notification,
		SpeedKmh:       speed,
		WheelAvailable: s.link.Available(),
	}
	return res.Command, res.Flags
}

// driveWheel runs calibration until it is done, then force feedback. The
// wheel position comes from the steering axis, so nothing happens without
// a joystick.
func (s *Subsystem) driveWheel(js *control.RawSample, target arbiter.Target) {
	if js == nil {
		return
	}
	pos := js.Axis(s.steerAxis)
	if !s.calib.Done() {
		s.calib.Step(pos)
		return
	}
	s.ff.Update(pos, target)
}

func (s *Subsystem) apply(actions []input.Action) {
	for _, a := range actions {
		switch a {
		case input.ToggleAutopilot:
			s.SetAutopilot(s.arb.Mode() != arbiter.Autopilot)
		case input.ToggleRestriction:
			s.arb.ToggleRestriction()
		case input.ToggleReverse:
			s.arb.ToggleReverse()
		case input.ToggleManualGear:
			s.arb.ToggleManualGear()
		case input.GearDown:
			s.arb.ShiftGear(-1)
		case input.GearUp:
			s.arb.ShiftGear(1)
		case input.Recalibrate:
			s.StartCalibration()
		}
	}
}

// StartCalibration resets the wheel and restarts the calibration sweep.
func (s *Subsystem) StartCalibration() {
	s.ff.Disable()
	s.calib.Reset()
	if s.wheelRange != 0 {
		s.link.SetRange(s.wheelRange)
	}
}

// Reset returns the wheel to its power-up state: every effect stopped,
// autocenter and LEDs off, range re-applied, and calibration back at Start.
func (s *Subsystem) Reset() {
	s.StartCalibration()
	log.Println("controller: wheel reset")
}

func (s *Subsystem) SetEvasiveEnabled(on bool) {
	s.arb.SetEvasiveEnabled(on)
	log.Printf("controller: evasive braking %v", on)
}

// SetAutopilot switches the arbiter and the vehicle together.
func (s *Subsystem) SetAutopilot(on bool) {
	s.arb.SetAutopilot(on)
	s.actuator.SetAutopilot(on)
}

// Calibrated reports whether the calibration sweep finished.
func (s *Subsystem) Calibrated() bool { return s.calib.Done() }

// Status returns the snapshot of the last tick.
func (s *Subsystem) Status() telemetry.Status { return s.status }

// Handle executes a lifecycle command.
func (s *Subsystem) Handle(cmd LifecycleCommand) error {
	switch cmd.Action {
	case ActionStartCalibration:
		s.StartCalibration()
	case ActionReset:
		s.Reset()
	case ActionSetEvasive:
		s.SetEvasiveEnabled(cmd.Enabled)
	case ActionToggleAutopilot:
		s.SetAutopilot(s.arb.Mode() != arbiter.Autopilot)
	case ActionToggleRestriction:
		s.arb.ToggleRestriction()
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	return nil
}
