// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vehicle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

const knotsToKmh = 1.852

// NMEASpeed reads ground speed from a GPS receiver's RMC and VTG sentences.
type NMEASpeed struct {
	port io.ReadCloser
	name string

	mu  sync.RWMutex
	kmh float64
	fix bool
}

// OpenNMEASpeed opens the GPS serial port. Call Run to start reading.
func OpenNMEASpeed(portName string, baud uint) (*NMEASpeed, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open GPS port %s: %w", portName, err)
	}
	log.Printf("vehicle: GPS serial port opened on %s at %d baud", portName, baud)
	return &NMEASpeed{port: port, name: portName}, nil
}

// Run reads sentences until ctx is cancelled or the port fails.
func (n *NMEASpeed) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		n.port.Close()
	}()

	reader := bufio.NewReader(n.port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("GPS read error on %s: %w", n.name, err)
		}
		n.handleLine(line)
	}
}

// handleLine updates the speed from one NMEA line and reports whether it
// carried a usable speed.
func (n *NMEASpeed) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return false
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy receivers emit partial sentences
		return false
	}

	var kmh float64
	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			n.setFix(false)
			return false
		}
		kmh = m.Speed * knotsToKmh
	case nmea.TypeVTG:
		m := sentence.(nmea.VTG)
		kmh = m.GroundSpeedKPH
		if kmh == 0 && m.GroundSpeedKnots != 0 {
			kmh = m.GroundSpeedKnots * knotsToKmh
		}
	default:
		return false
	}

	n.mu.Lock()
	n.kmh = kmh
	n.fix = true
	n.mu.Unlock()
	return true
}

func (n *NMEASpeed) setFix(ok bool) {
	n.mu.Lock()
	n.fix = ok
	n.mu.Unlock()
}

// SpeedKmh returns the last reported speed, or 0 without a valid fix.
func (n *NMEASpeed) SpeedKmh() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if !n.fix {
		return 0
	}
	return n.kmh
}

func (n *NMEASpeed) Close() error {
	return n.port.Close()
}
