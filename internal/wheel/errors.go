// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wheel

import "errors"

var (
	ErrNoDevice         = errors.New("no_device")
	ErrNotHidraw        = errors.New("not_hidraw")
	ErrWrongDevice      = errors.New("wrong_device")
	ErrShortWrite       = errors.New("short_write")
	ErrUnknownTransport = errors.New("unknown_transport")
)
