// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Lifecycle actions accepted on the command topic.
const (
	ActionStartCalibration  = "start_calibration"
	ActionReset             = "reset"
	ActionSetEvasive        = "set_evasive"
	ActionToggleAutopilot   = "toggle_autopilot"
	ActionToggleRestriction = "toggle_restriction"
)

// LifecycleCommand is a request from the console or web UI.
type LifecycleCommand struct {
	Action  string `json:"action"`
	Enabled bool   `json:"enabled,omitempty"` // set_evasive only
}

func parseCommand(payload []byte) (LifecycleCommand, error) {
	var cmd LifecycleCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, fmt.Errorf("command unmarshal error: %w", err)
	}
	if !validAction(cmd.Action) {
		return cmd, fmt.Errorf("unknown action %q", cmd.Action)
	}
	return cmd, nil
}

func validAction(a string) bool {
	switch a {
	case ActionStartCalibration, ActionReset, ActionSetEvasive, ActionToggleAutopilot, ActionToggleRestriction:
		return true
	}
	return false
}

// commandQueue carries lifecycle commands from the MQTT handler to the
// control loop, which drains it at the start of every tick.
type commandQueue chan LifecycleCommand

func newCommandQueue(size int) commandQueue {
	return make(commandQueue, size)
}

// push never blocks the MQTT client; commands beyond the buffer are dropped.
func (q commandQueue) push(cmd LifecycleCommand) bool {
	select {
	case q <- cmd:
		return true
	default:
		return false
	}
}

// drain returns every queued command.
func (q commandQueue) drain() []LifecycleCommand {
	var out []LifecycleCommand
	for {
		select {
		case cmd := <-q:
			out = append(out, cmd)
		default:
			return out
		}
	}
}

func (q commandQueue) handler(_ mqtt.Client, msg mqtt.Message) {
	cmd, err := parseCommand(msg.Payload())
	if err != nil {
		log.Printf("controller: %v", err)
		return
	}
	if !q.push(cmd) {
		log.Printf("controller: command queue full, dropped %s", cmd.Action)
	}
}

// publishCommand sends cmd to the controller.
func publishCommand(client mqtt.Client, topic string, cmd LifecycleCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 1, false, payload)
	token.Wait()
	return token.Error()
}
