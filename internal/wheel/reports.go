// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wheel

// ReportSize is the fixed length of every output report.
const ReportSize = 7

// Report is one opcode-prefixed output report.
type Report [ReportSize]byte

// Logitech classic FFB opcodes. Slot F0 carries the constant force, F1 the
// vibration and F2 the friction effect.
const (
	opExtended     = 0xf8
	opExtRange     = 0x81
	opExtLEDs      = 0x12
	opConstantF0   = 0x11
	opStopF0       = 0x13
	opVibrateF1    = 0x21
	opStopF1       = 0x23
	opFrictionF2   = 0x41
	opAutocenterOn = 0x34
	opAutocenter   = 0x3e
	opAutoOff      = 0x35
	opResetDownF0  = 0xf0
	opResetDownF1  = 0xf1
	opResetStopF1  = 0xf3

	ledsAll        = 0x1f
	vibrateAmp     = 32
	neutralForce   = 0x80
	effectPeriod   = 0x08
	effectAllSlots = 0x0f
)

func rangeReport(deg uint16) Report {
	return Report{opExtended, opExtRange, byte(deg & 0xff), byte(deg >> 8), 0, 0, 0}
}

func ledsReport(on bool) Report {
	if on {
		return Report{opExtended, opExtLEDs, ledsAll, 0, 0, 0, 0}
	}
	return Report{opExtended, opExtLEDs, 0, 0, 0, 0, 0}
}

func autocenterReports(on bool) []Report {
	if on {
		return []Report{
			{opAutocenter, 0x00, 0x04, 0x04, neutralForce, 0, 0},
			{opAutocenterOn, 0, 0, 0, 0, 0, 0},
		}
	}
	return []Report{{opAutoOff, 0, 0, 0, 0, 0, 0}}
}

func frictionReport(level uint8) Report {
	return Report{opFrictionF2, 0x02, level, 0x00, level, 0, 0}
}

func constantForceReport(level uint8) Report {
	return Report{opConstantF0, 0x00, level, 0, 0, 0, 0}
}

func disableForceReport() Report {
	return Report{opStopF0, 0, 0, 0, 0, 0, 0}
}

func vibrateOnReport() Report {
	return Report{opVibrateF1, 0x06, neutralForce + vibrateAmp, neutralForce - vibrateAmp, effectPeriod, effectPeriod, effectAllSlots}
}

func vibrateOffReport() Report {
	return Report{opStopF1, 0, 0, 0, 0, 0, 0}
}

func resetReports() []Report {
	return []Report{
		{opResetDownF1, 0x06, neutralForce, neutralForce, effectPeriod, effectPeriod, effectAllSlots},
		{opResetStopF1, 0, 0, 0, 0, 0, 0},
		{opResetDownF0, 0x00, neutralForce, neutralForce, neutralForce, neutralForce, 0x00},
	}
}
