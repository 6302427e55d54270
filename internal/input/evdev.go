// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux input event types and codes used here.
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02
	evAbs = 0x03

	relX = 0x00
	relY = 0x01

	btnMisc  = 0x100
	btnLeft  = 0x110
	keyMax   = 0x2ff
	absMax   = 0x3f
	keyBytes = (keyMax + 1) / 8
)

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// inputEvent is a decoded struct input_event without its timestamp.
type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// eventSize is sizeof(struct input_event) on this platform.
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

// decodeEvents splits buf into events of size sz. A trailing partial event
// is dropped; the kernel never returns one.
func decodeEvents(buf []byte, sz int) []inputEvent {
	ts := sz - 8
	out := make([]inputEvent, 0, len(buf)/sz)
	for len(buf) >= sz {
		ev := buf[:sz]
		buf = buf[sz:]
		out = append(out, inputEvent{
			Type:  binary.LittleEndian.Uint16(ev[ts : ts+2]),
			Code:  binary.LittleEndian.Uint16(ev[ts+2 : ts+4]),
			Value: int32(binary.LittleEndian.Uint32(ev[ts+4 : ts+8])),
		})
	}
	return out
}

// evdev is a non-blocking event device opened on a raw fd, so reads return
// EAGAIN instead of parking on the runtime poller.
type evdev struct {
	path string
	fd   int
	buf  []byte
}

func openEvdev(path string) (*evdev, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &evdev{path: path, fd: fd, buf: make([]byte, 64*eventSize)}, nil
}

// drain returns every event queued since the previous call.
func (d *evdev) drain() ([]inputEvent, error) {
	var out []inputEvent
	for {
		n, err := unix.Read(d.fd, d.buf)
		if errors.Is(err, unix.EAGAIN) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read %s: %w", d.path, err)
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, decodeEvents(d.buf[:n], eventSize)...)
		if n < len(d.buf) {
			return out, nil
		}
	}
}

func (d *evdev) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// absInfo reads the range of one ABS axis (EVIOCGABS).
func (d *evdev) absInfo(code int) (absInfo, error) {
	var info absInfo
	req := ioc(iocRead, 'E', uint32(0x40+code), uint32(unsafe.Sizeof(info)))
	err := d.ioctl(req, unsafe.Pointer(&info))
	return info, err
}

// capabilities returns the codes the device supports for event type ev
// (EVIOCGBIT).
func (d *evdev) capabilities(ev uint32, maxCode int) ([]int, error) {
	bits := make([]byte, maxCode/8+1)
	req := ioc(iocRead, 'E', 0x20+ev, uint32(len(bits)))
	if err := d.ioctl(req, unsafe.Pointer(&bits[0])); err != nil {
		return nil, err
	}
	var codes []int
	for c := 0; c <= maxCode; c++ {
		if bits[c/8]&(1<<(c%8)) != 0 {
			codes = append(codes, c)
		}
	}
	return codes, nil
}

// keys fills ks with the currently held keys (EVIOCGKEY).
func (d *evdev) keys(ks *KeyState) error {
	req := ioc(iocRead, 'E', 0x18, uint32(len(ks)))
	return d.ioctl(req, unsafe.Pointer(&ks[0]))
}

func (d *evdev) Close() error {
	return unix.Close(d.fd)
}
