// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wheel

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// DeviceEventType tells whether the watched node appeared or went away.
type DeviceEventType int

const (
	DeviceAdded DeviceEventType = iota
	DeviceRemoved
)

type DeviceEvent struct {
	Type DeviceEventType
	Path string
}

// Monitor watches the directory holding the wheel node and reports when the
// node itself is created or removed.
type Monitor struct {
	path    string
	watcher *fsnotify.Watcher
	events  chan DeviceEvent
}

func NewMonitor(path string) (*Monitor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Monitor{
		path:    filepath.Clean(path),
		watcher: w,
		events:  make(chan DeviceEvent, 4),
	}, nil
}

// Events delivers hot-plug events; the channel is closed when Run returns.
func (m *Monitor) Events() <-chan DeviceEvent {
	return m.events
}

// Run forwards events until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.events)
	defer m.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != m.path {
				continue
			}
			var de DeviceEvent
			switch {
			case ev.Has(fsnotify.Create):
				de = DeviceEvent{Type: DeviceAdded, Path: m.path}
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				de = DeviceEvent{Type: DeviceRemoved, Path: m.path}
			default:
				continue
			}
			select {
			case m.events <- de:
			case <-ctx.Done():
				return
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("wheel: monitor: %v", err)
		}
	}
}
