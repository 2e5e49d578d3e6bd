// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regmap

import "github.com/yunkot/MicroPXL-sub002/hwio"

// BCM283x GPIO bank geometry. The bank sits at a fixed offset inside the
// peripheral window and keeps the same register layout across the whole
// line; BCM2711 only replaced the pull-control registers at the top of
// the bank.

const (
	bcmGPIOOffset = 0x200000

	// BCMGPIOLen is the span to map for the GPIO bank.
	BCMGPIOLen = 0x1000

	// GPPUD is the legacy pull control register; the selected value is
	// clocked into pins through the registers of PullClkReg.
	GPPUD = 37
)

// GPIOBank returns the physical range of the GPIO register bank. It is
// meaningful for the BCM families, whose peripheral window base comes
// from detection.
func (p Platform) GPIOBank() (phys uint64, length int) {
	return p.PeriphBase + bcmGPIOOffset, BCMGPIOLen
}

// FselReg returns the function-select register of a pin and the shift of
// its three-bit field. Ten pins share a register.
func FselReg(pin int) (reg, shift uint32) {
	return uint32(pin / 10), uint32(pin % 10 * 3)
}

// SetReg returns the set register of a pin and its bit. Writing the bit
// drives the pin high; zero bits leave other pins alone.
func SetReg(pin int) (reg, bit uint32) {
	return uint32(7 + pin/32), 1 << uint(pin%32)
}

// ClrReg returns the clear register of a pin and its bit.
func ClrReg(pin int) (reg, bit uint32) {
	return uint32(10 + pin/32), 1 << uint(pin%32)
}

// LevReg returns the level register of a pin and its bit.
func LevReg(pin int) (reg, bit uint32) {
	return uint32(13 + pin/32), 1 << uint(pin%32)
}

// PullClkReg returns the legacy pull clock register of a pin and its bit.
func PullClkReg(pin int) (reg, bit uint32) {
	return uint32(38 + pin/32), 1 << uint(pin%32)
}

// PullSelReg returns the BCM2711 pull register of a pin and the shift of
// its two-bit field. Sixteen pins share a register.
func PullSelReg(pin int) (reg, shift uint32) {
	return uint32(57 + pin/16), uint32(pin % 16 * 2)
}

// FselValue returns the function-select encoding of a mode. The alternate
// functions are not numbered in register order.
func FselValue(m hwio.Mode) uint32 {
	switch m {
	case hwio.Input:
		return 0
	case hwio.Output:
		return 1
	case hwio.Alt0:
		return 4
	case hwio.Alt1:
		return 5
	case hwio.Alt2:
		return 6
	case hwio.Alt3:
		return 7
	case hwio.Alt4:
		return 3
	case hwio.Alt5:
		return 2
	}
	return 0
}

// PullValue returns the pull encoding of a family. The legacy scheme and
// BCM2711 disagree on which value is up and which is down.
func PullValue(f Family, p hwio.Pull) uint32 {
	if f == BCM2711 {
		switch p {
		case hwio.PullUp:
			return 1
		case hwio.PullDown:
			return 2
		}
		return 0
	}
	switch p {
	case hwio.PullDown:
		return 1
	case hwio.PullUp:
		return 2
	}
	return 0
}
