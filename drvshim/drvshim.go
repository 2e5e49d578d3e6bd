// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package drvshim presents hwio buses in the shape the device drivers
// of tinygo.org/x/drivers expect, so that collection of sensor and
// display drivers runs unchanged against the Linux backends here.
package drvshim

import (
	"tinygo.org/x/drivers"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

// I2C adapts an addressed bus. Drivers pass the peripheral address on
// every transaction; the shim reselects it on the bus only when it
// differs from the previous call, since selection is an ioctl on the
// Linux side.
type I2C struct {
	bus  hwio.AddressedBus
	addr int
}

// Ensure compile-time conformance with the driver bus interfaces.
var (
	_ drivers.I2C = (*I2C)(nil)
	_ drivers.SPI = (*SPI)(nil)
)

// NewI2C wraps bus. The shim assumes it is the only user of the bus:
// selecting an address through the bus directly invalidates the
// shim's idea of the current peripheral.
func NewI2C(bus hwio.AddressedBus) *I2C {
	return &I2C{bus: bus, addr: -1}
}

func (s *I2C) Tx(addr uint16, w, r []byte) error {
	if int(addr) != s.addr {
		if err := s.bus.SetAddress(int(addr)); err != nil {
			return err
		}
		s.addr = int(addr)
	}
	return s.bus.Tx(w, r)
}

// SPI adapts a clocked bus.
type SPI struct {
	bus hwio.ClockedBus
}

// NewSPI wraps bus. Mode, word size and clock rate stay whatever the
// bus was configured with; drivers that need specific settings should
// configure the bus before wrapping it.
func NewSPI(bus hwio.ClockedBus) *SPI {
	return &SPI{bus: bus}
}

func (s *SPI) Tx(w, r []byte) error {
	return s.bus.Transfer(w, r)
}

// Transfer clocks a single byte out and returns the byte clocked in.
func (s *SPI) Transfer(b byte) (byte, error) {
	var rx [1]byte
	if err := s.bus.Transfer([]byte{b}, rx[:]); err != nil {
		return 0, err
	}
	return rx[0], nil
}
