// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package forcefeedback

import (
	"math"
	"testing"

	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
)

type fakeForcer struct {
	dir      string
	force    float64
	disables int
}

func (f *fakeForcer) SteerLeft(force float64)  { f.dir, f.force = "left", force }
func (f *fakeForcer) SteerRight(force float64) { f.dir, f.force = "right", force }
func (f *fakeForcer) DisableForce()            { f.dir, f.force = "", 0; f.disables++ }

func TestDeadband(t *testing.T) {
	for _, kind := range []arbiter.TargetKind{arbiter.TargetAutopilot, arbiter.TargetRestricted} {
		dev := &fakeForcer{}
		c := New(dev)
		out := c.Update(0.51, arbiter.Target{Kind: kind, Steer: 0.5})
		if out.Direction != None || dev.disables != 1 || dev.dir != "" {
			t.Fatalf("kind %v: out %+v, dev %+v", kind, out, dev)
		}
	}
}

func TestDirectionFollowsError(t *testing.T) {
	cases := map[string]struct {
		pos, target float64
		want        Direction
		dev         string
	}{
		"target right": {pos: -0.2, target: 0.3, want: Right, dev: "right"},
		"target left":  {pos: 0.4, target: -0.1, want: Left, dev: "left"},
		"just outside": {pos: 0, target: -0.05, want: Left, dev: "left"},
	}
	for name, c := range cases {
		dev := &fakeForcer{}
		out := New(dev).Update(c.pos, arbiter.Target{Kind: arbiter.TargetAutopilot, Steer: c.target})
		if out.Direction != c.want || dev.dir != c.dev {
			t.Errorf("%s: out %+v, dev %q", name, out, dev.dir)
		}
	}
}

func TestForceMagnitude(t *testing.T) {
	dev := &fakeForcer{}
	c := New(dev)

	out := c.Update(0, arbiter.Target{Kind: arbiter.TargetAutopilot, Steer: 0.4})
	if math.Abs(out.Force-0.4) > 1e-9 {
		t.Fatalf("autopilot force %v, want 0.4", out.Force)
	}

	out = c.Update(0, arbiter.Target{Kind: arbiter.TargetRestricted, Steer: 0.4})
	if math.Abs(out.Force-0.6) > 1e-9 || math.Abs(dev.force-0.6) > 1e-9 {
		t.Fatalf("restricted force %v, want 0.6", out.Force)
	}

	out = c.Update(-1, arbiter.Target{Kind: arbiter.TargetRestricted, Steer: 1})
	if out.Force != 1 {
		t.Fatalf("force %v not clamped", out.Force)
	}
}

func TestNoTargetDisables(t *testing.T) {
	dev := &fakeForcer{}
	c := New(dev)
	c.Update(0, arbiter.Target{Kind: arbiter.TargetRestricted, Steer: 0.8})
	out := c.Update(0, arbiter.Target{Kind: arbiter.TargetNone, Steer: 0.8})
	if out != (Output{}) || dev.dir != "" || dev.disables != 1 {
		t.Fatalf("out %+v, dev %+v", out, dev)
	}
	if c.Last() != (Output{}) {
		t.Fatalf("last %+v", c.Last())
	}
}
