// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vehicle

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// LogLights only logs brake-light changes.
type LogLights struct{}

func (LogLights) SetBrake(on bool) error {
	log.Printf("vehicle: brake light %v", on)
	return nil
}

// GPIOLights drives a brake-light relay from a GPIO pin.
type GPIOLights struct {
	pin gpio.PinOut
}

// OpenGPIOLights initializes periph and sets the pin low.
func OpenGPIOLights(pinName string) (*GPIOLights, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("brake light: unknown GPIO pin %q", pinName)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("brake light: set %s low: %w", pinName, err)
	}
	log.Printf("vehicle: brake light on %s", pinName)
	return &GPIOLights{pin: p}, nil
}

func (l *GPIOLights) SetBrake(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return l.pin.Out(level)
}
