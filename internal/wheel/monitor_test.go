// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wheel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func recvWithin(t *testing.T, ch <-chan DeviceEvent, d time.Duration) DeviceEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("monitor channel closed")
		}
		return ev
	case <-time.After(d):
		t.Fatal("timeout waiting for device event")
	}
	return DeviceEvent{}
}

func TestMonitorReportsAddAndRemove(t *testing.T) {
	dir := t.TempDir()
	node := filepath.Join(dir, "logitech_raw")

	m, err := NewMonitor(node)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// unrelated files are ignored
	if err := os.WriteFile(filepath.Join(dir, "other"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(node, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	ev := recvWithin(t, m.Events(), 2*time.Second)
	if ev.Type != DeviceAdded || ev.Path != node {
		t.Fatalf("got %+v", ev)
	}

	if err := os.Remove(node); err != nil {
		t.Fatal(err)
	}
	ev = recvWithin(t, m.Events(), 2*time.Second)
	if ev.Type != DeviceRemoved {
		t.Fatalf("got %+v", ev)
	}
}
