// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import "log"

// MouseState is the pointer position and the press anchor used for mouse
// steering. Coordinates are accumulated relative motion in pixels.
type MouseState struct {
	X, Y     int
	Anchored bool
	AnchorX  int
	AnchorY  int
}

// Mouse tracks a relative pointer device.
type Mouse struct {
	dev   *evdev
	state MouseState
}

func OpenMouse(path string) (*Mouse, error) {
	dev, err := openEvdev(path)
	if err != nil {
		return nil, err
	}
	log.Printf("input: mouse %s", path)
	return &Mouse{dev: dev}, nil
}

func (m *Mouse) handle(ev inputEvent) {
	switch ev.Type {
	case evRel:
		switch ev.Code {
		case relX:
			m.state.X += int(ev.Value)
		case relY:
			m.state.Y += int(ev.Value)
		}
	case evKey:
		if ev.Code != btnLeft {
			return
		}
		if ev.Value != 0 {
			m.state.Anchored = true
			m.state.AnchorX, m.state.AnchorY = m.state.X, m.state.Y
		} else {
			m.state.Anchored = false
		}
	}
}

// Poll drains pending motion and returns the current state.
func (m *Mouse) Poll() (MouseState, error) {
	evs, err := m.dev.drain()
	for _, ev := range evs {
		m.handle(ev)
	}
	return m.state, err
}

func (m *Mouse) Close() error {
	return m.dev.Close()
}
