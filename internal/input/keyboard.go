// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import "log"

// Keyboard reads held keys from an evdev keyboard node.
type Keyboard struct {
	dev *evdev
}

func OpenKeyboard(path string) (*Keyboard, error) {
	dev, err := openEvdev(path)
	if err != nil {
		return nil, err
	}
	log.Printf("input: keyboard %s", path)
	return &Keyboard{dev: dev}, nil
}

func keyReleases(evs []inputEvent) []Event {
	var out []Event
	for _, ev := range evs {
		if ev.Type == evKey && ev.Value == 0 {
			out = append(out, Event{Kind: KeyReleased, Code: int(ev.Code)})
		}
	}
	return out
}

// Poll returns the held-key table and the keys released since the last poll.
func (k *Keyboard) Poll() (KeyState, []Event, error) {
	var ks KeyState
	evs, err := k.dev.drain()
	if err != nil {
		return ks, nil, err
	}
	if err := k.dev.keys(&ks); err != nil {
		return ks, keyReleases(evs), err
	}
	return ks, keyReleases(evs), nil
}

func (k *Keyboard) Close() error {
	return k.dev.Close()
}
