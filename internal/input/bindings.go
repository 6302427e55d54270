// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

// EventKind distinguishes where a discrete input event came from.
type EventKind int

const (
	KeyReleased EventKind = iota
	ButtonPressed
)

// Event is a discrete key or button edge queued during a tick.
type Event struct {
	Kind EventKind
	Code int // key code, or button index for ButtonPressed
}

// Action is what a bound event asks the controller to do.
type Action int

const (
	NoAction Action = iota
	ToggleAutopilot
	ToggleRestriction
	ToggleReverse
	ToggleManualGear
	GearDown
	GearUp
	Recalibrate
)

func (a Action) String() string {
	switch a {
	case ToggleAutopilot:
		return "toggle_autopilot"
	case ToggleRestriction:
		return "toggle_restriction"
	case ToggleReverse:
		return "toggle_reverse"
	case ToggleManualGear:
		return "toggle_manual_gear"
	case GearDown:
		return "gear_down"
	case GearUp:
		return "gear_up"
	case Recalibrate:
		return "recalibrate"
	}
	return "none"
}

// Bindings maps wheel buttons and keys to actions.
type Bindings struct {
	Buttons map[int]Action
	Keys    map[int]Action
}

// DefaultBindings matches a Logitech G29 button layout.
func DefaultBindings() Bindings {
	return Bindings{
		Buttons: map[int]Action{
			5:  ToggleReverse,
			8:  ToggleAutopilot,
			11: ToggleRestriction,
		},
		Keys: map[int]Action{
			KeyP:         ToggleAutopilot,
			KeyR:         ToggleRestriction,
			KeyQ:         ToggleReverse,
			KeyM:         ToggleManualGear,
			KeyComma:     GearDown,
			KeyDot:       GearUp,
			KeyBackspace: Recalibrate,
		},
	}
}

// Resolve maps events to actions, dropping unbound ones.
func (b Bindings) Resolve(events []Event) []Action {
	var out []Action
	for _, ev := range events {
		var a Action
		switch ev.Kind {
		case KeyReleased:
			a = b.Keys[ev.Code]
		case ButtonPressed:
			a = b.Buttons[ev.Code]
		}
		if a != NoAction {
			out = append(out, a)
		}
	}
	return out
}
