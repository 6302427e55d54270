// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"strings"
	"testing"
)

type fakeMessage struct{ payload []byte }

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "wheel/command" }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestParseCommand(t *testing.T) {
	cases := map[string]struct {
		payload string
		want    LifecycleCommand
		err     string
	}{
		"calibrate":   {payload: `{"action":"start_calibration"}`, want: LifecycleCommand{Action: ActionStartCalibration}},
		"evasive on":  {payload: `{"action":"set_evasive","enabled":true}`, want: LifecycleCommand{Action: ActionSetEvasive, Enabled: true}},
		"evasive off": {payload: `{"action":"set_evasive"}`, want: LifecycleCommand{Action: ActionSetEvasive}},
		"unknown":     {payload: `{"action":"launch"}`, err: "unknown action"},
		"garbage":     {payload: `{"action":`, err: "unmarshal"},
	}
	for name, tc := range cases {
		got, err := parseCommand([]byte(tc.payload))
		if tc.err != "" {
			if err == nil || !strings.Contains(err.Error(), tc.err) {
				t.Errorf("%s: got error %v, want %q", name, err, tc.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %+v, want %+v", name, got, tc.want)
		}
	}
}

func TestCommandQueueDropsWhenFull(t *testing.T) {
	q := newCommandQueue(2)
	for _, a := range []string{ActionReset, ActionToggleAutopilot, ActionToggleRestriction} {
		q.push(LifecycleCommand{Action: a})
	}

	got := q.drain()
	if len(got) != 2 || got[0].Action != ActionReset || got[1].Action != ActionToggleAutopilot {
		t.Fatalf("drain: got %+v", got)
	}
	if more := q.drain(); len(more) != 0 {
		t.Fatalf("second drain: got %+v", more)
	}
}

func TestCommandQueueHandler(t *testing.T) {
	q := newCommandQueue(4)
	q.handler(nil, fakeMessage{payload: []byte(`{"action":"reset"}`)})
	q.handler(nil, fakeMessage{payload: []byte(`{"action":"launch"}`)})
	q.handler(nil, fakeMessage{payload: []byte(`not json`)})

	got := q.drain()
	if len(got) != 1 || got[0].Action != ActionReset {
		t.Fatalf("got %+v, want one reset", got)
	}
}
