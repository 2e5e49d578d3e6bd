// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regmap

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// AM335x windows. The control module holds the pad configuration
// registers; each GPIO bank is its own window on the interconnect.

// AM335xCtl returns the control module window.
func AM335xCtl() Bank {
	return Bank{Phys: 0x44e10000, Len: 0x1000}
}

// AM335xGPIOBanks returns the four GPIO bank windows in bank order.
func AM335xGPIOBanks() [4]Bank {
	return [4]Bank{
		{Phys: 0x44e07000, Len: 0x1000},
		{Phys: 0x4804c000, Len: 0x1000},
		{Phys: 0x481ac000, Len: 0x1000},
		{Phys: 0x481ae000, Len: 0x1000},
	}
}

// Word offsets inside an AM335x GPIO bank.
const (
	AM335xOE      = 0x134 / 4 // output enable, one bit per pin, 0 = output
	AM335xDataIn  = 0x138 / 4 // sampled pin levels
	AM335xDataOut = 0x13c / 4 // driven levels
	AM335xClear   = 0x190 / 4 // write ones to drive pins low
	AM335xSet     = 0x194 / 4 // write ones to drive pins high
)

// Pad configuration register bits.
const (
	PadModeMask = 0x7    // pad function, 7 selects GPIO
	PadMuxGPIO  = 0x7
	PadPullDis  = 1 << 3 // disable the pad's pull resistor
	PadPullUp   = 1 << 4 // pull up instead of down, when enabled
	PadRXActive = 1 << 5 // enable the pad's receiver
	PadSlewSlow = 1 << 6
)

// MuxEntry describes how a multiplexed pin reaches its GPIO bank.
type MuxEntry struct {
	Conf uint32 // word offset of the pad register in the control module
	Bank int    // GPIO bank index
	Bit  uint32 // bit inside the bank's data registers
	Fast bool   // the bank's set/clear registers may be driven directly
}

// LookupMux returns the mux entry of a pin under family f. The result
// depends on nothing but the arguments.
func LookupMux(f Family, pin int) (MuxEntry, bool) {
	switch f {
	case AM335x:
		e, ok := am335xMux[pin]
		return e, ok
	}
	return MuxEntry{}, false
}

// MuxPins returns the pins family f can multiplex, in ascending order.
func MuxPins(f Family) []int {
	switch f {
	case AM335x:
		pins := maps.Keys(am335xMux)
		slices.Sort(pins)
		return pins
	}
	return nil
}

func conf(byteOff uint32) uint32 { return byteOff / 4 }

// am335xMux lists the dedicated GPIO pins of the BeagleBone expansion
// headers by kernel GPIO number (bank*32 + bit). Bank 0 sits behind the
// wakeup-domain bridge and is not given the fast path; banks 1 and 2 are
// on the peripheral interconnect.
var am335xMux = map[int]MuxEntry{
	// P8 header
	22: {conf(0x820), 0, 22, false}, // gpmc_ad8,  P8.19
	23: {conf(0x824), 0, 23, false}, // gpmc_ad9,  P8.13
	26: {conf(0x828), 0, 26, false}, // gpmc_ad10, P8.14
	27: {conf(0x82c), 0, 27, false}, // gpmc_ad11, P8.17
	32: {conf(0x800), 1, 0, true},   // gpmc_ad0,  P8.25
	33: {conf(0x804), 1, 1, true},   // gpmc_ad1,  P8.24
	34: {conf(0x808), 1, 2, true},   // gpmc_ad2,  P8.5
	35: {conf(0x80c), 1, 3, true},   // gpmc_ad3,  P8.6
	36: {conf(0x810), 1, 4, true},   // gpmc_ad4,  P8.23
	37: {conf(0x814), 1, 5, true},   // gpmc_ad5,  P8.22
	38: {conf(0x818), 1, 6, true},   // gpmc_ad6,  P8.3
	39: {conf(0x81c), 1, 7, true},   // gpmc_ad7,  P8.4
	44: {conf(0x830), 1, 12, true},  // gpmc_ad12, P8.12
	45: {conf(0x834), 1, 13, true},  // gpmc_ad13, P8.11
	46: {conf(0x838), 1, 14, true},  // gpmc_ad14, P8.16
	47: {conf(0x83c), 1, 15, true},  // gpmc_ad15, P8.15
	61: {conf(0x87c), 1, 29, true},  // gpmc_csn0, P8.26
	62: {conf(0x880), 1, 30, true},  // gpmc_csn1, P8.21
	63: {conf(0x884), 1, 31, true},  // gpmc_csn2, P8.20
	65: {conf(0x88c), 2, 1, true},   // gpmc_clk,      P8.18
	66: {conf(0x890), 2, 2, true},   // gpmc_advn_ale, P8.7
	67: {conf(0x894), 2, 3, true},   // gpmc_oen_ren,  P8.8
	68: {conf(0x898), 2, 4, true},   // gpmc_wen,      P8.10
	69: {conf(0x89c), 2, 5, true},   // gpmc_ben0_cle, P8.9

	// P9 header
	30: {conf(0x870), 0, 30, false}, // gpmc_wait0, P9.11
	31: {conf(0x874), 0, 31, false}, // gpmc_wpn,   P9.13
	48: {conf(0x840), 1, 16, true},  // gpmc_a0, P9.15
	49: {conf(0x844), 1, 17, true},  // gpmc_a1, P9.23
	50: {conf(0x848), 1, 18, true},  // gpmc_a2, P9.14
	51: {conf(0x84c), 1, 19, true},  // gpmc_a3, P9.16
	60: {conf(0x878), 1, 28, true},  // gpmc_ben1, P9.12
}
