// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

// Linux key codes (input-event-codes.h) the controller reacts to.
const (
	KeyBackspace = 14
	KeyQ         = 16
	KeyW         = 17
	KeyR         = 19
	KeyP         = 25
	KeyLeftCtrl  = 29
	KeyA         = 30
	KeyS         = 31
	KeyD         = 32
	KeyM         = 50
	KeyComma     = 51
	KeyDot       = 52
	KeySpace     = 57
	KeyRightCtrl = 97
	KeyUp        = 103
	KeyLeft      = 105
	KeyRight     = 106
	KeyDown      = 108
)

// KeyState is the held-key bitmap as returned by EVIOCGKEY.
type KeyState [keyBytes]byte

// Held reports whether key code is down.
func (k *KeyState) Held(code int) bool {
	if code < 0 || code > keyMax {
		return false
	}
	return k[code/8]&(1<<(code%8)) != 0
}

// Set marks code as held or released.
func (k *KeyState) Set(code int, down bool) {
	if code < 0 || code > keyMax {
		return
	}
	if down {
		k[code/8] |= 1 << (code % 8)
	} else {
		k[code/8] &^= 1 << (code % 8)
	}
}

// Any reports whether one of codes is held.
func (k *KeyState) Any(codes ...int) bool {
	for _, c := range codes {
		if k.Held(c) {
			return true
		}
	}
	return false
}

// Ctrl reports whether either control key is held.
func (k *KeyState) Ctrl() bool {
	return k.Any(KeyLeftCtrl, KeyRightCtrl)
}
