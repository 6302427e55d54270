// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wheel

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	mu      sync.Mutex
	reports []Report
	err     error
	closed  bool
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var r Report
	copy(r[:], p)
	f.reports = append(f.reports, r)
	return len(p), nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) take() []Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.reports
	f.reports = nil
	return out
}

func newTestLink() (*Link, *fakeTransport) {
	ft := &fakeTransport{}
	l := NewLink(ft)
	l.after = func(_ time.Duration, f func()) { f() }
	return l, ft
}

func expectReports(t *testing.T, got []Report, want ...Report) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d reports %x, want %d %x", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("report %d: got % x, want % x", i, got[i], want[i])
		}
	}
}

func TestOpcodesAreBitExact(t *testing.T) {
	l, ft := newTestLink()

	l.SetRange(900)
	expectReports(t, ft.take(), Report{0xf8, 0x81, 0x84, 0x03, 0, 0, 0})

	l.SetLEDs(false)
	expectReports(t, ft.take(), Report{0xf8, 0x12, 0, 0, 0, 0, 0})
	l.SetLEDs(true)
	expectReports(t, ft.take(), Report{0xf8, 0x12, 0x1f, 0, 0, 0, 0})

	l.SetAutocenter(false)
	expectReports(t, ft.take(), Report{0x35, 0, 0, 0, 0, 0, 0})
	l.SetAutocenter(true)
	expectReports(t, ft.take(),
		Report{0x3e, 0x00, 0x04, 0x04, 0x80, 0, 0},
		Report{0x34, 0, 0, 0, 0, 0, 0})

	l.SetFriction(2)
	expectReports(t, ft.take(), Report{0x41, 0x02, 2, 0, 2, 0, 0})

	l.SetConstantForce(0x40)
	expectReports(t, ft.take(), Report{0x11, 0x00, 0x40, 0, 0, 0, 0})

	l.DisableForce()
	expectReports(t, ft.take(), Report{0x13, 0, 0, 0, 0, 0, 0})

	l.Vibrate()
	expectReports(t, ft.take(),
		Report{0x21, 0x06, 0xa0, 0x60, 0x08, 0x08, 0x0f},
		Report{0x23, 0, 0, 0, 0, 0, 0})

	l.Reset()
	expectReports(t, ft.take(),
		Report{0xf1, 0x06, 0x80, 0x80, 0x08, 0x08, 0x0f},
		Report{0xf3, 0, 0, 0, 0, 0, 0},
		Report{0xf0, 0x00, 0x80, 0x80, 0x80, 0x80, 0x00})
}

func TestStateChangesShortCircuit(t *testing.T) {
	l, ft := newTestLink()

	// wheel powers up with LEDs and autocenter on
	l.SetLEDs(true)
	l.SetAutocenter(true)
	expectReports(t, ft.take())

	l.SetLEDs(false)
	l.SetLEDs(false)
	if got := len(ft.take()); got != 1 {
		t.Fatalf("repeated SetLEDs wrote %d reports, want 1", got)
	}

	l.SetConstantForce(10)
	l.SetConstantForce(10)
	if got := len(ft.take()); got != 1 {
		t.Fatalf("repeated constant force wrote %d reports, want 1", got)
	}
	l.SetConstantForce(11)
	if got := len(ft.take()); got != 1 {
		t.Fatalf("changed level must be written, got %d", got)
	}

	l.DisableForce()
	l.DisableForce()
	if got := len(ft.take()); got != 1 {
		t.Fatalf("repeated DisableForce wrote %d reports, want 1", got)
	}
}

func TestSetForceQuantization(t *testing.T) {
	cases := map[string]struct {
		steer func(l *Link)
		level uint8
		mode  Mode
	}{
		"neutral disables": {func(l *Link) { l.SetForce(0.5) }, 0, NoForce},
		"full right":       {func(l *Link) { l.SteerRight(1) }, 0, ConstantForce},
		"full left":        {func(l *Link) { l.SteerLeft(1) }, 255, ConstantForce},
		"left saturates":   {func(l *Link) { l.SteerLeft(3) }, 255, ConstantForce},
		"right 0.2":        {func(l *Link) { l.SteerRight(0.2) }, 102, ConstantForce},
		"left 0.2":         {func(l *Link) { l.SteerLeft(0.2) }, 153, ConstantForce},
	}
	for name, c := range cases {
		l, _ := newTestLink()
		c.steer(l)
		mode, level := l.Mode()
		if mode != c.mode || level != c.level {
			t.Errorf("%s: got %v/%d, want %v/%d", name, mode, level, c.mode, c.level)
		}
	}
}

func TestNoTransportIsNoop(t *testing.T) {
	l := NewLink(nil)
	l.SetRange(900)
	l.SetLEDs(false)
	l.SteerLeft(1)
	l.Vibrate()
	l.Reset()
	if l.Available() {
		t.Fatal("link without transport reports available")
	}
	if mode, _ := l.Mode(); mode != NoForce {
		t.Fatalf("mode changed without device: %v", mode)
	}
}

func TestWriteFailureDegradesOnce(t *testing.T) {
	l, ft := newTestLink()
	ft.err = errors.New("EPIPE")

	l.SetRange(360)
	if l.Available() {
		t.Fatal("link still available after write failure")
	}

	ft.err = nil
	l.SetRange(360)
	l.SteerRight(1)
	expectReports(t, ft.take())

	// re-attaching clears the failure
	ft2 := &fakeTransport{}
	if prev := l.Attach(ft2); prev != ft {
		t.Fatal("Attach must return the previous transport")
	}
	l.SetRange(360)
	expectReports(t, ft2.take(), Report{0xf8, 0x81, 0x68, 0x01, 0, 0, 0})
}

func TestCloseClosesTransport(t *testing.T) {
	l, ft := newTestLink()
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if !ft.closed {
		t.Fatal("transport not closed")
	}
	if l.Available() {
		t.Fatal("closed link still available")
	}
}

func TestErrorsAreStableStrings(t *testing.T) {
	cases := map[string]error{
		"no_device":         ErrNoDevice,
		"not_hidraw":        ErrNotHidraw,
		"wrong_device":      ErrWrongDevice,
		"short_write":       ErrShortWrite,
		"unknown_transport": ErrUnknownTransport,
	}
	for want, e := range cases {
		if e == nil || e.Error() != want {
			t.Fatalf("error %q mismatch: got %#v", want, e)
		}
	}
}

func TestOpenUnknownTransport(t *testing.T) {
	if _, err := Open(Options{Transport: "carrier-pigeon"}); !errors.Is(err, ErrUnknownTransport) {
		t.Fatalf("got %v", err)
	}
}
