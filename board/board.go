// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package board assembles the backend stack for the host it runs on.
//
// Open detects the SoC family and acquires the fastest pin backend the
// process is allowed to use, degrading to the generic sysfs backend when
// direct register access is unavailable. The bus constructors open the
// conventional device locations of the detected board; hosts this package
// does not recognize can still open buses by number through the i2c, spi
// and uart packages directly.
package board

import (
	"errors"
	"os"

	"github.com/yunkot/MicroPXL-sub002/fastgpio"
	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/i2c"
	"github.com/yunkot/MicroPXL-sub002/muxgpio"
	"github.com/yunkot/MicroPXL-sub002/regmap"
	"github.com/yunkot/MicroPXL-sub002/spi"
	"github.com/yunkot/MicroPXL-sub002/sysfs"
	"github.com/yunkot/MicroPXL-sub002/uart"
)

// ForceGenericEnv names the environment variable that, when set to any
// non-empty value, keeps pin access on the sysfs backend even where a
// register-mapped one exists. Useful when another process owns the GPIO
// registers.
const ForceGenericEnv = "MICROPXL_GENERIC_PINS"

// Board is the assembled backend stack for the detected host.
type Board struct {
	// Platform is the detection result. The zero value means no supported
	// family was recognized and everything runs on the generic backends.
	Platform regmap.Platform

	pins hwio.DigitalIO
}

// constructors are the backend openers. Tests substitute fakes.
type constructors struct {
	sysfs func() (hwio.DigitalIO, error)
	fast  func(regmap.Platform) (hwio.DigitalIO, error)
	mux   func(hwio.DigitalIO, regmap.Family) (hwio.DigitalIO, error)
}

var defaultConstructors = constructors{
	sysfs: func() (hwio.DigitalIO, error) { return sysfs.New() },
	fast:  func(p regmap.Platform) (hwio.DigitalIO, error) { return fastgpio.Open(p) },
	mux: func(base hwio.DigitalIO, f regmap.Family) (hwio.DigitalIO, error) {
		return muxgpio.New(base, f)
	},
}

// Open detects the host and acquires its pin backend. Detection failure
// is not an error: unrecognized hosts get the generic backend. Failure
// to construct any pin backend at all is, and names the resource that
// could not be acquired.
func Open() (*Board, error) {
	plat, err := regmap.Detect()
	if err != nil {
		hwio.Logger().Debug("no supported SoC recognized, staying on generic backends", "err", err)
		plat = regmap.Platform{}
	}
	return open(plat, os.Getenv(ForceGenericEnv) != "", defaultConstructors)
}

func open(plat regmap.Platform, generic bool, c constructors) (*Board, error) {
	pins, err := pickPins(plat, generic, c)
	if err != nil {
		return nil, err
	}
	return &Board{Platform: plat, pins: pins}, nil
}

func pickPins(plat regmap.Platform, generic bool, c constructors) (hwio.DigitalIO, error) {
	if generic {
		return c.sysfs()
	}
	switch plat.Family {
	case regmap.BCM2835, regmap.BCM2711:
		g, err := c.fast(plat)
		if err == nil {
			return g, nil
		}
		hwio.Logger().Warn("register-mapped gpio unavailable, degrading to sysfs",
			"platform", plat.Family, "err", err)
	case regmap.AM335x:
		base, err := c.sysfs()
		if err != nil {
			return nil, err
		}
		m, err := c.mux(base, plat.Family)
		if err == nil {
			return m, nil
		}
		hwio.Logger().Warn("pad multiplexer unavailable, pins keep their boot functions",
			"platform", plat.Family, "err", err)
		return base, nil
	}
	return c.sysfs()
}

// Pins returns the pin backend. On AM335x hosts with the pad multiplexer
// acquired it is a *muxgpio.GPIO; callers that want the fast register
// path can type-assert for it.
func (b *Board) Pins() hwio.DigitalIO { return b.pins }

// Pin returns a handle bound to one pin of the board's backend. The
// handle stays valid until the board is closed.
func (b *Board) Pin(n int) hwio.Pin { return hwio.Pin{IO: b.pins, N: n} }

// OpenI2C opens the board's conventional external I²C bus.
func (b *Board) OpenI2C() (*i2c.Bus, error) {
	d := boardDefaults(b.Platform.Family)
	if d.i2cBus < 0 {
		return nil, noDefault("board.i2c", "i2c bus")
	}
	return i2c.Open(d.i2cBus)
}

// OpenSPI opens the board's conventional SPI device.
func (b *Board) OpenSPI() (*spi.Device, error) {
	d := boardDefaults(b.Platform.Family)
	if d.spiBus < 0 {
		return nil, noDefault("board.spi", "spi device")
	}
	return spi.Open(d.spiBus, d.spiCS)
}

// OpenUART opens the board's conventional serial port.
func (b *Board) OpenUART(cfg uart.Config) (*uart.TTY, error) {
	return uart.Open(boardDefaults(b.Platform.Family).tty, cfg)
}

// Close releases the pin backend and every pin it claimed.
func (b *Board) Close() error { return b.pins.Close() }

type busDefaults struct {
	i2cBus int
	spiBus int
	spiCS  int
	tty    string
}

// boardDefaults returns the conventional device locations of a family.
// A negative bus number means the family has no conventional location
// and the caller must pick one.
func boardDefaults(f regmap.Family) busDefaults {
	switch f {
	case regmap.BCM2835, regmap.BCM2711:
		// i2c-1 and spidev0.0 are the 40-pin header buses; ttyAMA0 is
		// the PL011 on the header once bluetooth releases it.
		return busDefaults{i2cBus: 1, spiBus: 0, spiCS: 0, tty: "/dev/ttyAMA0"}
	case regmap.AM335x:
		// i2c-2 is the BeagleBone cape bus; the first header SPI
		// enumerates as spidev1.0.
		return busDefaults{i2cBus: 2, spiBus: 1, spiCS: 0, tty: "/dev/ttyO0"}
	case regmap.Edison:
		// Breakout-board buses; ttyMFD2 is the console, 1 is free.
		return busDefaults{i2cBus: 6, spiBus: 5, spiCS: 1, tty: "/dev/ttyMFD1"}
	}
	return busDefaults{i2cBus: -1, spiBus: -1, tty: "/dev/ttyS0"}
}

func noDefault(op, what string) error {
	return &hwio.Error{
		Kind:     hwio.KindConfig,
		Op:       op,
		Resource: "default " + what,
		Err:      errors.New("platform not recognized, open the device by number"),
	}
}
