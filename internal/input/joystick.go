// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import (
	"fmt"
	"log"

	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
)

// Joystick reads a wheel's evdev node. Axes and buttons are indexed in
// ascending event-code order, the same order SDL and joydev expose them in.
type Joystick struct {
	dev *evdev

	axisIndex   map[int]int
	ranges      []absInfo
	buttonIndex map[int]int

	axes    []float64
	seen    []bool
	buttons []bool
	events  []Event
}

// OpenJoystick opens the event node at path and reads its axis ranges.
func OpenJoystick(path string) (*Joystick, error) {
	dev, err := openEvdev(path)
	if err != nil {
		return nil, err
	}
	absCodes, err := dev.capabilities(evAbs, absMax)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("%s: abs capabilities: %w", path, err)
	}
	keyCodes, err := dev.capabilities(evKey, keyMax)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("%s: key capabilities: %w", path, err)
	}

	ranges := make([]absInfo, len(absCodes))
	for i, code := range absCodes {
		info, err := dev.absInfo(code)
		if err != nil {
			dev.Close()
			return nil, fmt.Errorf("%s: abs %d range: %w", path, code, err)
		}
		ranges[i] = info
	}
	var buttons []int
	for _, c := range keyCodes {
		if c >= btnMisc {
			buttons = append(buttons, c)
		}
	}

	j := newJoystick(absCodes, ranges, buttons)
	j.dev = dev
	log.Printf("input: joystick %s with %d axes, %d buttons", path, len(absCodes), len(buttons))
	return j, nil
}

func newJoystick(absCodes []int, ranges []absInfo, buttonCodes []int) *Joystick {
	j := &Joystick{
		axisIndex:   make(map[int]int, len(absCodes)),
		ranges:      ranges,
		buttonIndex: make(map[int]int, len(buttonCodes)),
		axes:        make([]float64, len(absCodes)),
		seen:        make([]bool, len(absCodes)),
		buttons:     make([]bool, len(buttonCodes)),
	}
	for i, c := range absCodes {
		j.axisIndex[c] = i
		j.axes[i] = normalizeAxis(ranges[i].Value, ranges[i])
	}
	for i, c := range buttonCodes {
		j.buttonIndex[c] = i
	}
	return j
}

func normalizeAxis(v int32, r absInfo) float64 {
	if r.Max <= r.Min {
		return 0
	}
	n := 2*float64(v-r.Min)/float64(r.Max-r.Min) - 1
	return mathx.Clamp(n, -1, 1)
}

func (j *Joystick) handle(ev inputEvent) {
	switch ev.Type {
	case evAbs:
		i, ok := j.axisIndex[int(ev.Code)]
		if !ok {
			return
		}
		j.axes[i] = normalizeAxis(ev.Value, j.ranges[i])
		j.seen[i] = true
	case evKey:
		i, ok := j.buttonIndex[int(ev.Code)]
		if !ok {
			return
		}
		down := ev.Value != 0
		if down && !j.buttons[i] {
			j.events = append(j.events, Event{Kind: ButtonPressed, Code: i})
		}
		j.buttons[i] = down
	}
}

func (j *Joystick) snapshot() (control.RawSample, []Event) {
	s := control.RawSample{
		Axes:     append([]float64(nil), j.axes...),
		AxisSeen: append([]bool(nil), j.seen...),
		Buttons:  append([]bool(nil), j.buttons...),
	}
	ev := j.events
	j.events = nil
	return s, ev
}

// Poll drains pending events and returns the current sample together with
// the button presses seen since the last poll.
func (j *Joystick) Poll() (control.RawSample, []Event, error) {
	evs, err := j.dev.drain()
	for _, ev := range evs {
		j.handle(ev)
	}
	s, presses := j.snapshot()
	return s, presses, err
}

func (j *Joystick) Close() error {
	return j.dev.Close()
}
