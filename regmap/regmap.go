// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regmap describes the register layout of the supported SoC
// families and detects which one the process is running on.
//
// Register positions are word offsets into a family's register windows;
// backends turn them into accesses through an mmio.Region. The tables are
// fixed at build time and detection never changes them, so lookups are
// pure functions and need no synchronization.
package regmap

// Family identifies the register layout of a supported SoC family.
type Family uint8

const (
	Unknown Family = iota

	// BCM2835 covers the BCM2835, BCM2836 and BCM2837 of the Raspberry
	// Pi boards up to the 3 line. They share the GPIO bank layout and
	// the clocked pull-control scheme; only the peripheral window moves.
	BCM2835

	// BCM2711 is the Raspberry Pi 4 line. The peripheral window moved
	// again and pull control became a direct per-pin register.
	BCM2711

	// AM335x is the TI Sitara line of the BeagleBone boards. Pins reach
	// the GPIO banks through the control module's pad multiplexer.
	AM335x

	// Edison is the Intel Edison compute module. It is detected so board
	// assembly can pick sensible defaults; pin access stays on the
	// generic backend since no mux table is built in for it.
	Edison
)

var familyNames = [...]string{"unknown", "bcm2835", "bcm2711", "am335x", "edison"}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "unknown"
}

// Pins returns the number of GPIO lines in the family's register-mapped
// bank, or 0 when the family has none.
func (f Family) Pins() int {
	switch f {
	case BCM2835:
		return 54
	case BCM2711:
		return 58
	}
	return 0
}

// Platform is a detected board: the family plus the physical base of its
// peripheral window.
type Platform struct {
	Family Family

	// PeriphBase is the physical base of the SoC peripheral window for
	// families with a single relocatable window. It is zero for families
	// whose windows have fixed addresses.
	PeriphBase uint64
}

// Bank is one mappable register window.
type Bank struct {
	Phys uint64
	Len  int
}
