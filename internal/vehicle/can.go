// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vehicle

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"github.com/relabs-tech/wheel_arbiter/internal/arbiter"
	"github.com/relabs-tech/wheel_arbiter/internal/control"
	"github.com/relabs-tech/wheel_arbiter/internal/mathx"
)

// FrameIDs are the CAN identifiers the actuator uses.
type FrameIDs struct {
	Command   uint32 // out: steer, pedals, flags, gear
	Speed     uint32 // in: ground speed
	Autopilot uint32 // in: autopilot command
}

// command frame flag bits
const (
	flagHandbrake = 1 << iota
	flagReverse
	flagAutopilot
)

const (
	steerScale = 1e4
	pedalScale = 250
	speedScale = 0.01 // m/s per bit
)

type frameTransmitter interface {
	TransmitFrame(ctx context.Context, f can.Frame) error
}

// CANActuator drives a vehicle over SocketCAN.
type CANActuator struct {
	conn io.Closer
	tx   frameTransmitter
	ids  FrameIDs

	autopilot atomic.Bool

	mu      sync.RWMutex
	speed   float64 // km/h
	ap      *arbiter.AutopilotState
	engaged bool
}

// DialCAN opens iface (e.g. "can0") and starts receiving vehicle frames.
func DialCAN(ctx context.Context, iface string, ids FrameIDs) (*CANActuator, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	a := &CANActuator{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
		ids:  ids,
	}
	go a.receive(socketcan.NewReceiver(conn), iface)
	log.Printf("vehicle: CAN actuator on %s", iface)
	return a, nil
}

func (a *CANActuator) receive(rx *socketcan.Receiver, iface string) {
	for rx.Receive() {
		a.handle(rx.Frame())
	}
	log.Printf("vehicle: CAN receive on %s stopped", iface)
}

func (a *CANActuator) handle(f can.Frame) {
	switch f.ID {
	case a.ids.Speed:
		kmh, ok := decodeSpeed(f)
		if !ok {
			return
		}
		a.mu.Lock()
		a.speed = kmh
		a.mu.Unlock()
	case a.ids.Autopilot:
		cmd, engaged, ok := decodeAutopilot(f)
		if !ok {
			return
		}
		a.mu.Lock()
		a.ap = &arbiter.AutopilotState{Command: cmd}
		a.engaged = engaged
		a.mu.Unlock()
	}
}

func (a *CANActuator) Apply(ctx context.Context, cmd control.Command) error {
	f := encodeCommand(a.ids.Command, cmd, a.autopilot.Load())
	if err := a.tx.TransmitFrame(ctx, f); err != nil {
		return fmt.Errorf("transmit command frame: %w", err)
	}
	return nil
}

func (a *CANActuator) SpeedKmh() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.speed
}

func (a *CANActuator) Autopilot() (*arbiter.AutopilotState, bool) {
	if !a.autopilot.Load() {
		return nil, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ap == nil || !a.engaged {
		return nil, false
	}
	return a.ap, true
}

func (a *CANActuator) SetAutopilot(on bool) {
	a.autopilot.Store(on)
}

func (a *CANActuator) Close() error {
	return a.conn.Close()
}

// encodeCommand lays out the command frame:
//
//	0-1 steer int16 ×1e4
//	2   throttle uint8 ×250
//	3   brake uint8 ×250
//	4   flags
//	5   gear int8
func encodeCommand(id uint32, cmd control.Command, autopilot bool) can.Frame {
	f := can.Frame{ID: id, Length: 6}
	steer := int16(math.Round(mathx.Clamp(cmd.Steer, -1, 1) * steerScale))
	binary.LittleEndian.PutUint16(f.Data[0:2], uint16(steer))
	f.Data[2] = uint8(math.Round(mathx.Clamp(cmd.Throttle, 0, 1) * pedalScale))
	f.Data[3] = uint8(math.Round(mathx.Clamp(cmd.Brake, 0, 1) * pedalScale))

	var flags uint8
	if cmd.Handbrake {
		flags |= flagHandbrake
	}
	if cmd.Reverse {
		flags |= flagReverse
	}
	if autopilot {
		flags |= flagAutopilot
	}
	f.Data[4] = flags
	f.Data[5] = uint8(int8(mathx.Clamp(cmd.Gear, math.MinInt8, math.MaxInt8)))
	return f
}

// decodeSpeed reads the speed frame: int16 in 0.01 m/s.
func decodeSpeed(f can.Frame) (float64, bool) {
	if f.Length < 2 {
		return 0, false
	}
	raw := int16(binary.LittleEndian.Uint16(f.Data[0:2]))
	return math.Abs(float64(raw)*speedScale) * 3.6, true
}

// decodeAutopilot reads the autopilot frame: steer int16 ×1e4, throttle and
// brake uint8 ×250, engaged byte.
func decodeAutopilot(f can.Frame) (control.Command, bool, bool) {
	if f.Length < 5 {
		return control.Command{}, false, false
	}
	raw := int16(binary.LittleEndian.Uint16(f.Data[0:2]))
	cmd := control.Command{
		Steer:    mathx.Clamp(float64(raw)/steerScale, -1, 1),
		Throttle: mathx.Clamp(float64(f.Data[2])/pedalScale, 0, 1),
		Brake:    mathx.Clamp(float64(f.Data[3])/pedalScale, 0, 1),
	}
	return cmd, f.Data[4] != 0, true
}
