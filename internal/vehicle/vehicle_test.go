// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vehicle

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.einride.tech/can"

	"github.com/relabs-tech/wheel_arbiter/internal/control"
)

var testIDs = FrameIDs{Command: 0x200, Speed: 0x300, Autopilot: 0x301}

type fakeTx struct {
	frames []can.Frame
	err    error
}

func (f *fakeTx) TransmitFrame(_ context.Context, fr can.Frame) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, fr)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newTestCAN() (*CANActuator, *fakeTx) {
	tx := &fakeTx{}
	return &CANActuator{conn: nopCloser{}, tx: tx, ids: testIDs}, tx
}

func TestEncodeCommand(t *testing.T) {
	cmd := control.Command{Steer: -0.5, Throttle: 1, Brake: 0.2, Handbrake: true, Gear: -1, Reverse: true}
	f := encodeCommand(0x200, cmd, true)

	if f.ID != 0x200 || f.Length != 6 {
		t.Fatalf("id %#x length %d", f.ID, f.Length)
	}
	// -5000 little endian
	want := [6]byte{0x78, 0xec, 250, 50, flagHandbrake | flagReverse | flagAutopilot, 0xff}
	for i := range want {
		if f.Data[i] != want[i] {
			t.Fatalf("byte %d = %#02x, want %#02x (frame % x)", i, f.Data[i], want[i], f.Data[:6])
		}
	}
}

func TestEncodeCommandClamps(t *testing.T) {
	f := encodeCommand(0x200, control.Command{Steer: 3, Throttle: -1, Brake: 9, Gear: 500}, false)
	cmd, _, _ := decodeAutopilot(can.Frame{Length: 5, Data: f.Data})
	if cmd.Steer != 1 || cmd.Throttle != 0 || cmd.Brake != 1 {
		t.Fatalf("clamped command decoded as %+v", cmd)
	}
	if int8(f.Data[5]) != math.MaxInt8 || f.Data[4] != 0 {
		t.Fatalf("gear %d flags %#x", int8(f.Data[5]), f.Data[4])
	}
}

func TestHandleSpeedFrame(t *testing.T) {
	a, _ := newTestCAN()
	f := can.Frame{ID: 0x300, Length: 2}
	// 10 m/s
	f.Data[0], f.Data[1] = 0xe8, 0x03
	a.handle(f)
	if got := a.SpeedKmh(); math.Abs(got-36) > 1e-9 {
		t.Fatalf("speed %v km/h, want 36", got)
	}

	a.handle(can.Frame{ID: 0x300, Length: 1})
	if got := a.SpeedKmh(); math.Abs(got-36) > 1e-9 {
		t.Fatalf("short frame changed speed to %v", got)
	}
}

func TestAutopilotFrame(t *testing.T) {
	a, _ := newTestCAN()
	f := can.Frame{ID: 0x301, Length: 5}
	// steer 0.25, throttle 0.4, brake 0, engaged
	f.Data[0], f.Data[1] = 0xc4, 0x09
	f.Data[2] = 100
	f.Data[4] = 1
	a.handle(f)

	if _, ok := a.Autopilot(); ok {
		t.Fatal("autopilot reported while disabled")
	}
	a.SetAutopilot(true)
	st, ok := a.Autopilot()
	if !ok {
		t.Fatal("autopilot state missing")
	}
	if st.Command.Steer != 0.25 || st.Command.Throttle != 0.4 || st.Command.Brake != 0 {
		t.Fatalf("autopilot command %+v", st.Command)
	}

	f.Data[4] = 0
	a.handle(f)
	if _, ok := a.Autopilot(); ok {
		t.Fatal("disengaged autopilot reported")
	}
}

func TestApplyTransmits(t *testing.T) {
	a, tx := newTestCAN()
	a.SetAutopilot(true)
	if err := a.Apply(context.Background(), control.Command{Throttle: 0.5}); err != nil {
		t.Fatal(err)
	}
	if len(tx.frames) != 1 || tx.frames[0].Data[2] != 125 || tx.frames[0].Data[4]&flagAutopilot == 0 {
		t.Fatalf("frames %+v", tx.frames)
	}

	tx.err = errors.New("no buffer space")
	if err := a.Apply(context.Background(), control.Command{}); err == nil {
		t.Fatal("expected transmit error")
	}
}

func TestMockActuator(t *testing.T) {
	m := NewMockActuator()
	now := m.start
	m.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		now = now.Add(100 * time.Millisecond)
		m.Apply(context.Background(), control.Command{Throttle: 1})
	}
	fast := m.SpeedKmh()
	if fast <= 0 {
		t.Fatalf("no speed after throttle: %v", fast)
	}

	for i := 0; i < 50; i++ {
		now = now.Add(100 * time.Millisecond)
		m.Apply(context.Background(), control.Command{Brake: 1})
	}
	if got := m.SpeedKmh(); got != 0 {
		t.Fatalf("speed %v after braking, want 0", got)
	}
	if m.LastCommand().Brake != 1 {
		t.Fatalf("last command %+v", m.LastCommand())
	}

	if _, ok := m.Autopilot(); ok {
		t.Fatal("autopilot reported while off")
	}
	m.SetAutopilot(true)
	st, ok := m.Autopilot()
	if !ok || st.Command.Throttle == 0 || math.Abs(st.Command.Steer) > 0.3 {
		t.Fatalf("autopilot %+v %v", st, ok)
	}
}

func TestNMEASpeed(t *testing.T) {
	n := &NMEASpeed{}
	cases := []struct {
		line string
		ok   bool
		kmh  float64
	}{
		{line: "$GPRMC,220516,A,5133.82,N,00042.24,W,10.0,054.7,191194,020.3,E,A*36\r\n", ok: true, kmh: 18.52},
		{line: "$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K,A*25", ok: true, kmh: 10.2},
		{line: "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47", ok: false, kmh: 10.2},
		{line: "garbage", ok: false, kmh: 10.2},
		{line: "$GPRMC,220516,A,5133.82,N,00042.24,W,10.0,054.7,191194,020.3,E,A*00", ok: false, kmh: 10.2},
		{line: "$GPRMC,220516,V,5133.82,N,00042.24,W,10.0,054.7,191194,020.3,E*4C", ok: false, kmh: 0},
	}
	for _, c := range cases {
		if got := n.handleLine(c.line); got != c.ok {
			t.Errorf("%q: handled %v, want %v", c.line, got, c.ok)
		}
		if got := n.SpeedKmh(); math.Abs(got-c.kmh) > 1e-9 {
			t.Errorf("%q: speed %v, want %v", c.line, got, c.kmh)
		}
	}
}
