// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package arbiter

import (
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/control"
)

type fakeLights struct{ calls []bool }

func (l *fakeLights) SetBrake(on bool) error {
	l.calls = append(l.calls, on)
	return nil
}

type fakeVibrator struct{ n int }

func (v *fakeVibrator) Vibrate() { v.n++ }

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestArbiter() (*Arbiter, *fakeLights, *fakeVibrator) {
	l := &fakeLights{}
	v := &fakeVibrator{}
	return New(DefaultConfig(), l, v, nil), l, v
}

func envelope(steer, throttle, brake float64) *control.Envelope {
	return &control.Envelope{
		Valid:        true,
		Restricted:   control.Command{Steer: steer, Throttle: throttle, Brake: brake},
		Longitudinal: control.Range{Min: -8, Max: 2},
		Vehicle:      control.VehicleParams{AccelMax: 3.5, BrakeMin: 4, BrakeMax: 8},
	}
}

func TestLateralRestriction(t *testing.T) {
	a, _, v := newTestArbiter()
	res := a.Tick(Tick{
		Now:       t0,
		Candidate: control.Command{Steer: 1.0},
		Envelope:  envelope(0.2, 0, 0),
	})
	if res.Command.Steer != 0.2 {
		t.Fatalf("steer %v, want 0.2", res.Command.Steer)
	}
	if !res.Flags.Lateral || res.Flags.Longitudinal {
		t.Fatalf("flags %+v", res.Flags)
	}
	if !res.Cue || v.n != 1 {
		t.Fatalf("cue %v, vibrations %d", res.Cue, v.n)
	}
	if res.Target != (Target{Kind: TargetRestricted, Steer: 0.2}) {
		t.Fatalf("target %+v", res.Target)
	}
	if res.Notification != "restricts: Lateral" {
		t.Fatalf("notification %q", res.Notification)
	}
	if a.Restriction() != RestrictionActive {
		t.Fatalf("state %v", a.Restriction())
	}
}

func TestNoEnvelopePassesCandidate(t *testing.T) {
	a, _, v := newTestArbiter()
	cand := control.Command{Steer: -0.4, Throttle: 0.6, Handbrake: true}
	res := a.Tick(Tick{Now: t0, Candidate: cand})
	if res.Command != cand {
		t.Fatalf("command %+v, want %+v", res.Command, cand)
	}
	if res.Flags.Active() || v.n != 0 || res.Target.Kind != TargetNone {
		t.Fatalf("unexpected restriction: %+v", res)
	}

	res = a.Tick(Tick{Now: t0, Candidate: cand, Envelope: &control.Envelope{Valid: false}})
	if res.Command != cand || res.Flags.Active() {
		t.Fatalf("invalid envelope applied: %+v", res)
	}
}

func TestEqualCommandNeverCues(t *testing.T) {
	a, _, v := newTestArbiter()
	for i := 0; i < 10; i++ {
		res := a.Tick(Tick{
			Now:       t0.Add(time.Duration(i) * 16 * time.Millisecond),
			Candidate: control.Command{Steer: 0.3, Throttle: 0.5},
			Envelope:  envelope(0.3, 0.5, 0),
		})
		if res.Flags.Active() {
			t.Fatalf("tick %d: flags %+v", i, res.Flags)
		}
		if res.Command.Steer != 0.3 {
			t.Fatalf("tick %d: steer %v", i, res.Command.Steer)
		}
	}
	if v.n != 0 {
		t.Fatalf("vibrated %d times", v.n)
	}
}

func TestCueOncePerRisingEdge(t *testing.T) {
	a, _, v := newTestArbiter()
	now := t0
	step := func(cand float64) {
		a.Tick(Tick{Now: now, Candidate: control.Command{Steer: cand}, Envelope: envelope(0.2, 0, 0)})
		now = now.Add(16 * time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		step(1)
	}
	if v.n != 1 {
		t.Fatalf("vibrations %d, want 1", v.n)
	}
	step(0.2)
	step(1)
	if v.n != 2 {
		t.Fatalf("vibrations %d after second edge, want 2", v.n)
	}
	if a.Interventions() != 2 {
		t.Fatalf("interventions %d, want 2", a.Interventions())
	}
}

func TestSpeedCap(t *testing.T) {
	cases := map[string]struct {
		speed float64
		want  float64
	}{
		"below":    {speed: 29.9, want: 0.8},
		"at limit": {speed: 30, want: 0},
		"above":    {speed: 45, want: 0},
	}
	for name, c := range cases {
		a, _, _ := newTestArbiter()
		res := a.Tick(Tick{Now: t0, Candidate: control.Command{Throttle: 0.8}, SpeedKmh: c.speed})
		if res.Command.Throttle != c.want {
			t.Errorf("%s: throttle %v, want %v", name, res.Command.Throttle, c.want)
		}
	}
}

func TestFadeAfterLateralClears(t *testing.T) {
	a, _, _ := newTestArbiter()
	a.Tick(Tick{Now: t0, Candidate: control.Command{Steer: 1}, Envelope: envelope(0.2, 0, 0)})

	prev := 0.2
	for ms := 50; ms <= 700; ms += 50 {
		now := t0.Add(time.Duration(ms) * time.Millisecond)
		res := a.Tick(Tick{Now: now, Candidate: control.Command{Steer: 0.6}, Envelope: envelope(0.6, 0, 0)})
		if res.Flags.Active() {
			t.Fatalf("%dms: flags %+v", ms, res.Flags)
		}
		if res.Command.Steer < prev-1e-12 {
			t.Fatalf("%dms: steer went back from %v to %v", ms, prev, res.Command.Steer)
		}
		prev = res.Command.Steer
		if ms == 100 && math.Abs(res.Command.Steer-0.28) > 1e-9 {
			t.Fatalf("100ms: steer %v, want 0.28", res.Command.Steer)
		}
	}
	if math.Abs(prev-0.6) > 1e-9 {
		t.Fatalf("did not converge: %v", prev)
	}
}

func TestLongitudinalOnlyKeepsFading(t *testing.T) {
	a, _, _ := newTestArbiter()
	a.Tick(Tick{Now: t0, Candidate: control.Command{Steer: 1}, Envelope: envelope(0, 0, 0)})

	res := a.Tick(Tick{
		Now:       t0.Add(250 * time.Millisecond),
		Candidate: control.Command{Steer: 0.4, Throttle: 1},
		Envelope:  envelope(0.4, 0, 0.5),
	})
	if res.Flags.Lateral || !res.Flags.Longitudinal {
		t.Fatalf("flags %+v", res.Flags)
	}
	if math.Abs(res.Command.Steer-0.2) > 1e-9 {
		t.Fatalf("steer %v, want halfway 0.2", res.Command.Steer)
	}
	if res.Command.Throttle != 0 || res.Command.Brake != 0.5 {
		t.Fatalf("longitudinal %+v", res.Command)
	}
	if res.Target.Kind != TargetNone {
		t.Fatalf("target %+v", res.Target)
	}
	if res.Notification != "restricts: Longitudinal" {
		t.Fatalf("notification %q", res.Notification)
	}
}

func TestBothRestrictedNotification(t *testing.T) {
	a, _, _ := newTestArbiter()
	res := a.Tick(Tick{Now: t0, Candidate: control.Command{Steer: 1, Throttle: 1}, Envelope: envelope(0, 0, 0)})
	if res.Notification != "restricts: Lateral, Longitudinal" {
		t.Fatalf("notification %q", res.Notification)
	}
}

func TestSuspendedAndDisabled(t *testing.T) {
	a, _, v := newTestArbiter()
	cand := control.Command{Steer: 1}

	res := a.Tick(Tick{Now: t0, Candidate: cand, Envelope: envelope(0.2, 0, 0), Suspended: true})
	if res.Command != cand || res.Flags.Active() {
		t.Fatalf("suspended tick restricted: %+v", res)
	}
	if res.Notification != "restriction temporarily inactive" {
		t.Fatalf("notification %q", res.Notification)
	}

	if a.ToggleRestriction() {
		t.Fatal("toggle should disable restriction")
	}
	res = a.Tick(Tick{Now: t0, Candidate: cand, Envelope: envelope(0.2, 0, 0)})
	if res.Command != cand || res.Flags.Active() || res.Notification != "" {
		t.Fatalf("disabled restriction applied: %+v", res)
	}
	if v.n != 0 {
		t.Fatalf("vibrated %d times", v.n)
	}
}

func TestAutopilotPassthrough(t *testing.T) {
	a, _, _ := newTestArbiter()
	a.SetAutopilot(true)
	ap := &AutopilotState{Command: control.Command{Steer: -0.3, Throttle: 0.4, Gear: 3}}

	res := a.Tick(Tick{
		Now:       t0,
		Candidate: control.Command{Steer: 1},
		Autopilot: ap,
		Envelope:  envelope(0.2, 0, 0),
		SpeedKmh:  50,
	})
	if res.Command != ap.Command {
		t.Fatalf("command %+v, want %+v", res.Command, ap.Command)
	}
	if res.Target != (Target{Kind: TargetAutopilot, Steer: -0.3}) {
		t.Fatalf("target %+v", res.Target)
	}
	if res.Flags.Active() {
		t.Fatalf("flags %+v", res.Flags)
	}

	// no autopilot state falls back to the manual path
	res = a.Tick(Tick{Now: t0, Candidate: control.Command{Steer: 1}, Envelope: envelope(0.2, 0, 0)})
	if res.Command.Steer != 0.2 || !res.Flags.Lateral {
		t.Fatalf("manual fallback: %+v", res)
	}
	if a.Mode() != Autopilot {
		t.Fatalf("mode %v", a.Mode())
	}
}

func TestBrakeLightEdges(t *testing.T) {
	a, l, _ := newTestArbiter()
	for _, b := range []float64{0, 0.5, 0.7, 0, 0, 0.1} {
		a.Tick(Tick{Now: t0, Candidate: control.Command{Brake: b}})
	}
	want := []bool{true, false, true}
	if len(l.calls) != len(want) {
		t.Fatalf("brake light calls %v, want %v", l.calls, want)
	}
	for i := range want {
		if l.calls[i] != want[i] {
			t.Fatalf("brake light calls %v, want %v", l.calls, want)
		}
	}
}

func TestGearHandling(t *testing.T) {
	a, _, _ := newTestArbiter()

	a.ToggleReverse()
	res := a.Tick(Tick{Now: t0})
	if res.Command.Gear != -1 || !res.Command.Reverse {
		t.Fatalf("reverse: %+v", res.Command)
	}
	a.ToggleReverse()
	if a.Gear() != 1 {
		t.Fatalf("gear %d after second toggle", a.Gear())
	}

	a.ShiftGear(1)
	if a.Gear() != 1 {
		t.Fatal("shifted without manual gear shift")
	}
	if !a.ToggleManualGear() {
		t.Fatal("manual gear shift not enabled")
	}
	a.ShiftGear(1)
	if a.Gear() != 2 {
		t.Fatalf("gear %d, want 2", a.Gear())
	}
	for i := 0; i < 5; i++ {
		a.ShiftGear(-1)
	}
	if a.Gear() != -1 {
		t.Fatalf("gear %d, want floor -1", a.Gear())
	}
	res = a.Tick(Tick{Now: t0})
	if !res.Command.ManualGearShift || !res.Command.Reverse {
		t.Fatalf("command %+v", res.Command)
	}
}

func TestEvasiveInjection(t *testing.T) {
	dist := func(speed, maxSpeed, responseTime, accelMax, brakeMin float64) float64 { return 20 }
	a := New(DefaultConfig(), nil, nil, dist)
	a.SetEvasiveEnabled(true)

	env := envelope(0, 0.5, 0)
	env.Objects = []control.ObjectState{
		{ID: 1, Dangerous: false, Distance: 5, EgoLength: 4, ObjectLength: 4},
		{ID: 7, Dangerous: true, Distance: 10, EgoLength: 4, ObjectLength: 4},
	}

	res := a.Tick(Tick{Now: t0, Candidate: control.Command{Throttle: 0.5}, SpeedKmh: 20, Envelope: env})
	if res.Command.Throttle != 0 || res.Command.Brake != 0.5 {
		t.Fatalf("command %+v, want throttle 0 brake 0.5", res.Command)
	}
	if !res.Flags.Longitudinal || res.Flags.Lateral {
		t.Fatalf("flags %+v", res.Flags)
	}
	if env.Restricted.Throttle != 0.5 || env.Longitudinal.Max != 2 {
		t.Fatalf("oracle envelope modified: %+v", env)
	}
}

func TestEvasiveNegativeBrakeParams(t *testing.T) {
	var gotBrakeMin float64
	dist := func(_, _, _, _, brakeMin float64) float64 {
		gotBrakeMin = brakeMin
		return 20
	}
	a := New(DefaultConfig(), nil, nil, dist)
	a.SetEvasiveEnabled(true)

	env := envelope(0, 0.5, 0)
	env.Vehicle = control.VehicleParams{AccelMax: 3.5, BrakeMin: -4, BrakeMax: -8}
	env.Objects = []control.ObjectState{{ID: 2, Dangerous: true, Distance: 10, EgoLength: 4, ObjectLength: 4}}

	res := a.Tick(Tick{Now: t0, Candidate: control.Command{Throttle: 0.5}, SpeedKmh: 20, Envelope: env})
	if gotBrakeMin != 4 {
		t.Fatalf("braking distance got brakeMin %v, want 4", gotBrakeMin)
	}
	if res.Command.Throttle != 0 || res.Command.Brake != 0.5 {
		t.Fatalf("command %+v, want throttle 0 brake 0.5", res.Command)
	}
	if !res.Flags.Longitudinal {
		t.Fatalf("flags %+v", res.Flags)
	}
}

func TestEvasiveNotTriggered(t *testing.T) {
	cases := map[string]struct {
		enabled bool
		need    float64
		danger  bool
		lonMax  float64
	}{
		"disabled":      {enabled: false, need: 20, danger: true, lonMax: 2},
		"enough gap":    {enabled: true, need: 1, danger: true, lonMax: 2},
		"not dangerous": {enabled: true, need: 20, danger: false, lonMax: 2},
		"already brake": {enabled: true, need: 20, danger: true, lonMax: -1},
	}
	for name, c := range cases {
		need := c.need
		a := New(DefaultConfig(), nil, nil, func(_, _, _, _, _ float64) float64 { return need })
		a.SetEvasiveEnabled(c.enabled)
		env := envelope(0, 0.5, 0)
		env.Longitudinal.Max = c.lonMax
		env.Objects = []control.ObjectState{{ID: 3, Dangerous: c.danger, Distance: 10, EgoLength: 4, ObjectLength: 4}}

		res := a.Tick(Tick{Now: t0, Candidate: control.Command{Throttle: 0.5}, Envelope: env})
		if res.Flags.Active() || res.Command.Throttle != 0.5 {
			t.Errorf("%s: evasive applied: %+v", name, res)
		}
	}
}

func TestModeStrings(t *testing.T) {
	if Manual.String() != "manual" || Autopilot.String() != "autopilot" {
		t.Fatal("mode strings")
	}
	if RestrictionActive.String() != "restriction_active" || RestrictionInactive.String() != "restriction_inactive" {
		t.Fatal("restriction strings")
	}
}
