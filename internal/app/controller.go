// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
	"github.com/relabs-tech/wheel_arbiter/internal/config"
	"github.com/relabs-tech/wheel_arbiter/internal/input"
	"github.com/relabs-tech/wheel_arbiter/internal/oracle"
	"github.com/relabs-tech/wheel_arbiter/internal/telemetry"
	"github.com/relabs-tech/wheel_arbiter/internal/vehicle"
	"github.com/relabs-tech/wheel_arbiter/internal/wheel"
)

const telemetryInterval = 100 * time.Millisecond

var errNoConfig = errors.New("config not initialized")

func subsystemConfig(cfg *config.Config) SubsystemConfig {
	in := input.DefaultConfig()
	in.SteerAxis = cfg.Input.SteerAxis
	in.ThrottleAxis = cfg.Input.ThrottleAxis
	in.BrakeAxis = cfg.Input.BrakeAxis
	in.HandbrakeButton = cfg.Input.HandbrakeButton
	in.SteerGain = cfg.Input.SteerGain
	in.MouseRadius = cfg.Input.MouseRadius

	return SubsystemConfig{
		Input:   in,
		Arbiter: arbiter.Config{
			SpeedLimitKmh: cfg.Arbiter.SpeedLimitKmh,
			FadeIn:        cfg.Arbiter.FadeIn,
			ResponseTime:  cfg.Arbiter.ResponseTime,
			BrakeMax:      cfg.Arbiter.BrakeMax,
		},
		Bindings:   input.DefaultBindings(),
		Evasive:    cfg.Arbiter.Evasive,
		WheelRange: cfg.Wheel.Range,
	}
}

func wheelOptions(cfg config.WheelConfig) wheel.Options {
	return wheel.Options{
		Transport: cfg.Transport,
		Path:      cfg.Path,
		VendorID:  cfg.VendorID,
		ProductID: cfg.ProductID,
		BaudRate:  cfg.BaudRate,
	}
}

func openActuator(ctx context.Context, cfg *config.Config) (vehicle.Actuator, error) {
	if cfg.Vehicle.Actuator == "can" {
		return vehicle.DialCAN(ctx, cfg.CAN.Interface, vehicle.FrameIDs{
			Command:   cfg.CAN.CommandID,
			Speed:     cfg.CAN.SpeedID,
			Autopilot: cfg.CAN.AutopilotID,
		})
	}
	log.Println("controller: using mock vehicle")
	return vehicle.NewMockActuator(), nil
}

// openSpeedSource returns nil when the actuator reports speed itself.
func openSpeedSource(ctx context.Context, cfg *config.Config) (vehicle.SpeedSource, error) {
	if cfg.Vehicle.SpeedSource != "gps" {
		return nil, nil
	}
	gps, err := vehicle.OpenNMEASpeed(cfg.GPS.SerialPort, cfg.GPS.BaudRate)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := gps.Run(ctx); err != nil {
			log.Printf("controller: %v", err)
		}
	}()
	return gps, nil
}

func openLights(cfg config.LightsConfig) (arbiter.Lights, error) {
	if cfg.Driver == "gpio" {
		return vehicle.OpenGPIOLights(cfg.BrakePin)
	}
	return vehicle.LogLights{}, nil
}

// hotplug reattaches the wheel when its hidraw node comes and goes.
type hotplug struct {
	link   *wheel.Link
	vendor uint16
	devs   *devices
	sub    *Subsystem
}

func (h *hotplug) handle(ev wheel.DeviceEvent) {
	switch ev.Type {
	case wheel.DeviceAdded:
		t, err := wheel.OpenHidraw(ev.Path, h.vendor)
		if err != nil {
			log.Printf("controller: wheel %s appeared but cannot be opened: %v", ev.Path, err)
			return
		}
		if prev := h.link.Attach(t); prev != nil {
			prev.Close()
		}
		log.Printf("controller: wheel attached at %s", ev.Path)
		h.devs.reopenJoystick()
		h.sub.StartCalibration()
	case wheel.DeviceRemoved:
		if prev := h.link.Detach(); prev != nil {
			prev.Close()
		}
		log.Printf("controller: wheel removed from %s", ev.Path)
	}
}

// RunController runs the control loop until ctx is cancelled.
func RunController(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDController)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	envelopes := oracle.NewMQTTSource(client, cfg.Topics.Envelope, cfg.Arbiter.EnvelopeMaxAge)
	if err := envelopes.Subscribe(); err != nil {
		return err
	}
	queue := newCommandQueue(16)
	if err := subscribe(client, cfg.Topics.Command, 1, queue.handler); err != nil {
		return err
	}
	pub := telemetry.NewPublisher(client, cfg.Topics.Telemetry, telemetryInterval)
	go pub.Run(ctx)

	link := wheel.NewLink(nil)
	if t, err := wheel.Open(wheelOptions(cfg.Wheel)); err != nil {
		log.Printf("controller: wheel unavailable, force feedback disabled: %v", err)
	} else {
		link.Attach(t)
		link.SetRange(cfg.Wheel.Range)
	}
	defer link.Close()

	actuator, err := openActuator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("vehicle actuator: %w", err)
	}
	defer actuator.Close()

	speed, err := openSpeedSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("speed source: %w", err)
	}
	lights, err := openLights(cfg.Lights)
	if err != nil {
		return err
	}

	devs := openDevices(cfg.Input)
	defer devs.Close()

	sub := NewSubsystem(subsystemConfig(cfg), link, actuator, speed, lights)
	if devs.joystick != nil {
		sub.StartCalibration()
	}

	var plugEvents <-chan wheel.DeviceEvent
	if cfg.Wheel.Hotplug && cfg.Wheel.Transport == "hidraw" {
		mon, err := wheel.NewMonitor(cfg.Wheel.Path)
		if err != nil {
			log.Printf("controller: hot-plug disabled: %v", err)
		} else {
			go mon.Run(ctx)
			plugEvents = mon.Events()
		}
	}
	plug := &hotplug{link: link, vendor: cfg.Wheel.VendorID, devs: devs, sub: sub}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.Arbiter.TickRate))
	defer ticker.Stop()
	log.Printf("controller: running at %d Hz", cfg.Arbiter.TickRate)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Println("controller: shutting down")
			sub.Reset()
			return nil

		case now := <-ticker.C:
			for _, cmd := range queue.drain() {
				if err := sub.Handle(cmd); err != nil {
					log.Printf("controller: %v", err)
				}
			}
			plugEvents = drainHotplug(plugEvents, plug.handle)

			f := devs.poll(now.Sub(last))
			last = now
			ap, _ := actuator.Autopilot()
			sub.ArbitrateAndDrive(ctx, f, ap, envelopes.Latest(now))

			if _, err := pub.Publish(sub.Status()); err != nil {
				log.Printf("controller: %v", err)
			}
		}
	}
}

// drainHotplug handles pending events without blocking and returns nil once
// the monitor has stopped.
func drainHotplug(events <-chan wheel.DeviceEvent, handle func(wheel.DeviceEvent)) <-chan wheel.DeviceEvent {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			handle(ev)
		default:
			return events
		}
	}
}
