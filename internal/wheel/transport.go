// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wheel

import (
	"fmt"
	"log"
	"os"

	serial "github.com/jacobsa/go-serial/serial"
	hid "github.com/sstallion/go-hid"
	"golang.org/x/sys/unix"
)

// Options selects and parameterizes a transport.
type Options struct {
	Transport string // "hidraw", "hidapi" or "serial"
	Path      string // hidraw node or serial port
	VendorID  uint16 // 0 accepts any device
	ProductID uint16
	BaudRate  uint
}

// Open opens the transport named in opts.
func Open(opts Options) (Transport, error) {
	switch opts.Transport {
	case "", "hidraw":
		return OpenHidraw(opts.Path, opts.VendorID)
	case "hidapi":
		return OpenHIDAPI(opts.VendorID, opts.ProductID)
	case "serial":
		return OpenSerial(opts.Path, opts.BaudRate)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, opts.Transport)
}

// HidrawTransport writes reports straight to a /dev/hidraw node.
type HidrawTransport struct {
	*os.File
	Vendor  uint16
	Product uint16
}

// OpenHidraw opens path read-write and checks it is a hidraw node, and when
// vendor is non-zero, that it belongs to that vendor.
func OpenHidraw(path string, vendor uint16) (*HidrawTransport, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := unix.IoctlHIDGetRawInfo(int(f.Fd()))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNotHidraw, path, err)
	}
	t := &HidrawTransport{File: f, Vendor: uint16(info.Vendor), Product: uint16(info.Product)}
	if vendor != 0 && t.Vendor != vendor {
		f.Close()
		return nil, fmt.Errorf("%w: %s is %04x:%04x", ErrWrongDevice, path, t.Vendor, t.Product)
	}
	log.Printf("wheel: hidraw %s (%04x:%04x)", path, t.Vendor, t.Product)
	return t, nil
}

// HIDAPITransport goes through hidapi for systems where the hidraw node is
// not directly accessible.
type HIDAPITransport struct {
	dev *hid.Device
	buf []byte
}

func OpenHIDAPI(vid, pid uint16) (*HIDAPITransport, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("hidapi init: %w", err)
	}
	dev, err := hid.OpenFirst(vid, pid)
	if err != nil {
		hid.Exit()
		return nil, fmt.Errorf("%w: hidapi %04x:%04x: %v", ErrNoDevice, vid, pid, err)
	}
	log.Printf("wheel: hidapi %04x:%04x", vid, pid)
	return &HIDAPITransport{dev: dev, buf: make([]byte, ReportSize+1)}, nil
}

// Write prefixes report id 0, which hidapi strips again for devices without
// numbered reports.
func (t *HIDAPITransport) Write(p []byte) (int, error) {
	t.buf = append(t.buf[:0], 0)
	t.buf = append(t.buf, p...)
	n, err := t.dev.Write(t.buf)
	if n > 0 {
		n--
	}
	return n, err
}

func (t *HIDAPITransport) Close() error {
	err := t.dev.Close()
	hid.Exit()
	return err
}

// OpenSerial opens a serial-bridged wheel base that accepts the same 7-byte
// reports, e.g. a microcontroller FFB board.
func OpenSerial(port string, baud uint) (Transport, error) {
	if baud == 0 {
		baud = 115200
	}
	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	log.Printf("wheel: serial %s at %d baud", port, baud)
	return p, nil
}
