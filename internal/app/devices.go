// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/config"
	"github.com/relabs-tech/wheel_arbiter/internal/input"
)

// devices holds the input nodes. Each is nil while absent; a node that
// fails to read is closed and stays nil until reopened.
type devices struct {
	cfg      config.InputConfig
	joystick *input.Joystick
	keyboard *input.Keyboard
	mouse    *input.Mouse
	mouseSt  input.MouseState
}

func openDevices(cfg config.InputConfig) *devices {
	d := &devices{cfg: cfg}
	d.reopenJoystick()
	if cfg.Keyboard != "" {
		k, err := input.OpenKeyboard(cfg.Keyboard)
		if err != nil {
			log.Printf("controller: keyboard unavailable: %v", err)
		} else {
			d.keyboard = k
		}
	}
	if cfg.Mouse != "" {
		m, err := input.OpenMouse(cfg.Mouse)
		if err != nil {
			log.Printf("controller: mouse unavailable: %v", err)
		} else {
			d.mouse = m
		}
	}
	return d
}

// reopenJoystick opens the wheel's event node if it is not open yet.
func (d *devices) reopenJoystick() {
	if d.joystick != nil || d.cfg.Joystick == "" {
		return
	}
	j, err := input.OpenJoystick(d.cfg.Joystick)
	if err != nil {
		log.Printf("controller: joystick unavailable: %v", err)
		return
	}
	d.joystick = j
}

// poll reads every device once.
func (d *devices) poll(elapsed time.Duration) input.Frame {
	f := input.Frame{Elapsed: elapsed}

	if d.joystick != nil {
		s, evs, err := d.joystick.Poll()
		if err != nil {
			log.Printf("controller: joystick lost: %v", err)
			d.joystick.Close()
			d.joystick = nil
		} else {
			f.Joystick = &s
			f.Events = append(f.Events, evs...)
		}
	}

	if d.keyboard != nil {
		ks, evs, err := d.keyboard.Poll()
		if err != nil {
			log.Printf("controller: keyboard lost: %v", err)
			d.keyboard.Close()
			d.keyboard = nil
		} else {
			f.Keys = ks
			f.Events = append(f.Events, evs...)
		}
	}

	if d.mouse != nil {
		ms, err := d.mouse.Poll()
		if err != nil {
			log.Printf("controller: mouse lost: %v", err)
			d.mouse.Close()
			d.mouse = nil
			d.mouseSt = input.MouseState{}
		} else {
			d.mouseSt = ms
		}
	}
	f.Mouse = d.mouseSt
	return f
}

func (d *devices) Close() {
	if d.joystick != nil {
		d.joystick.Close()
	}
	if d.keyboard != nil {
		d.keyboard.Close()
	}
	if d.mouse != nil {
		d.mouse.Close()
	}
}
