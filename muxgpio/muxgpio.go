// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package muxgpio layers pad multiplexing over a generic pin interface
// for AM335x boards. Every pin of the SoC reaches the outside world
// through a pad with its own multiplexer, so the pad must select the
// GPIO function before the generic interface can move the pin at all.
//
// ConfigurePin writes the pad register for pins the multiplexer table
// knows, then hands the pin to the wrapped interface; reads and writes
// always go through the wrapped interface. Pins on the fast register
// path additionally support FastPin, which bypasses the generic path
// with direct register access.
package muxgpio

import (
	"errors"
	"fmt"

	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/internal/pinclaim"
	"github.com/yunkot/MicroPXL-sub002/mmio"
	"github.com/yunkot/MicroPXL-sub002/regmap"
)

const claimOwner = "muxgpio"

// GPIO multiplexes pads in front of a wrapped hwio.DigitalIO. It
// implements hwio.DigitalIO itself and owns the wrapped interface.
// Methods are not safe for concurrent use.
type GPIO struct {
	base hwio.DigitalIO
	fam  regmap.Family

	ctlDev  string
	ctl     *mmio.Region
	bankDev string
	bankAt  [4]regmap.Bank
	banks   [4]*mmio.Region

	pins  map[int]hwio.Mode
	owned map[int]bool // claims held by the multiplexer, not the wrapped interface
}

var _ hwio.DigitalIO = (*GPIO)(nil)

// New wraps base with the pad multiplexer of the given family. The
// control module is mapped immediately; a mapping failure aborts
// construction and leaves base untouched for the caller.
func New(base hwio.DigitalIO, fam regmap.Family) (*GPIO, error) {
	return newWith(base, fam, "/dev/mem", regmap.AM335xCtl(), "/dev/mem", regmap.AM335xGPIOBanks())
}

func newWith(base hwio.DigitalIO, fam regmap.Family, ctlDev string, ctl regmap.Bank, bankDev string, banks [4]regmap.Bank) (*GPIO, error) {
	if len(regmap.MuxPins(fam)) == 0 {
		return nil, &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "muxgpio.new",
			Resource: fam.String(),
			Err:      errors.New("family has no multiplexer table"),
		}
	}
	r, err := mmio.Map(ctlDev, ctl.Phys, ctl.Len)
	if err != nil {
		return nil, err
	}
	return &GPIO{
		base:    base,
		fam:     fam,
		ctlDev:  ctlDev,
		ctl:     r,
		bankDev: bankDev,
		bankAt:  banks,
		pins:    make(map[int]hwio.Mode),
		owned:   make(map[int]bool),
	}, nil
}

// ConfigurePin selects the pin's pad function and then configures the
// wrapped interface. Pins the multiplexer table knows carry their pull
// in the pad, so the wrapped interface sees no pull request for them;
// alternate functions are a pad-only affair and never reach it, so the
// multiplexer holds their claim itself until the pin is reconfigured or
// closed. Pins outside the table pass through unchanged.
func (g *GPIO) ConfigurePin(n int, mode hwio.Mode, pull hwio.Pull) error {
	res := fmt.Sprintf("gpio%d", n)
	if g.pins == nil {
		return &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "muxgpio.configure",
			Resource: res,
			Err:      errors.New("interface closed"),
		}
	}
	e, ok := regmap.LookupMux(g.fam, n)
	if !ok {
		if err := g.base.ConfigurePin(n, mode, pull); err != nil {
			return err
		}
		g.pins[n] = mode
		return nil
	}

	// Ownership is settled before the pad is touched: a refused
	// configure leaves the holder's function connected.
	if _, ours := g.pins[n]; !ours {
		if mode.IsAlt() {
			if err := pinclaim.Pins.Claim(n, claimOwner); err != nil {
				return &hwio.Error{Kind: hwio.KindConfig, Op: "muxgpio.configure", Resource: res, Err: err}
			}
			g.owned[n] = true
		} else if o, held := pinclaim.Pins.Holder(n); held {
			return &hwio.Error{
				Kind:     hwio.KindConfig,
				Op:       "muxgpio.configure",
				Resource: res,
				Err:      fmt.Errorf("%d already in use by %s", n, o),
			}
		}
	} else if g.owned[n] && !mode.IsAlt() {
		// Back to plain GPIO: the wrapped interface claims on its own
		// behalf, so the multiplexer's claim is dropped first.
		pinclaim.Pins.Release(n)
		delete(g.owned, n)
	}

	g.ctl.Write32(e.Conf, padValue(mode, pull))
	if !mode.IsAlt() {
		if err := g.base.ConfigurePin(n, mode, hwio.PullNone); err != nil {
			return err
		}
	}
	g.pins[n] = mode
	return nil
}

// padValue composes a pad control word. The receiver is powered only
// when the pad may need to read the wire.
func padValue(mode hwio.Mode, pull hwio.Pull) uint32 {
	var v uint32
	switch pull {
	case hwio.PullNone:
		v = regmap.PadPullDis
	case hwio.PullUp:
		v = regmap.PadPullUp
	case hwio.PullDown:
		// Pull enabled, direction down: both bits clear.
	}
	switch {
	case mode == hwio.Input:
		v |= regmap.PadMuxGPIO | regmap.PadRXActive
	case mode == hwio.Output:
		v |= regmap.PadMuxGPIO
	default:
		v |= uint32(mode.AltIndex()) | regmap.PadRXActive
	}
	return v
}

// ReadPin reads through the wrapped interface.
func (g *GPIO) ReadPin(n int) (hwio.Level, error) { return g.base.ReadPin(n) }

// WritePin writes through the wrapped interface.
func (g *GPIO) WritePin(n int, lv hwio.Level) error { return g.base.WritePin(n, lv) }

// FastPin returns a direct register handle for a configured pin. Pins
// whose bank sits behind the wakeup bridge have no fast path and are
// refused outright rather than silently served through the generic
// interface.
func (g *GPIO) FastPin(n int) (*FastPin, error) {
	res := fmt.Sprintf("gpio%d", n)
	e, ok := regmap.LookupMux(g.fam, n)
	if !ok {
		return nil, &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "muxgpio.fastpin",
			Resource: res,
			Err:      errors.New("no multiplexer row for pin"),
		}
	}
	if !e.Fast {
		return nil, &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "muxgpio.fastpin",
			Resource: res,
			Err:      errors.New("pin has no fast register path"),
		}
	}
	mode, ok := g.pins[n]
	if !ok {
		return nil, &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "muxgpio.fastpin",
			Resource: res,
			Err:      errors.New("pin not configured"),
		}
	}
	if mode.IsAlt() {
		return nil, &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "muxgpio.fastpin",
			Resource: res,
			Err:      fmt.Errorf("pin is in alternate function %v", mode),
		}
	}
	r, err := g.bank(e.Bank)
	if err != nil {
		return nil, err
	}
	return &FastPin{r: r, bit: 1 << e.Bit, pin: n}, nil
}

// bank maps a GPIO bank window on first use and keeps it for the
// lifetime of the interface.
func (g *GPIO) bank(i int) (*mmio.Region, error) {
	if g.banks[i] != nil {
		return g.banks[i], nil
	}
	r, err := mmio.Map(g.bankDev, g.bankAt[i].Phys, g.bankAt[i].Len)
	if err != nil {
		return nil, err
	}
	g.banks[i] = r
	return r, nil
}

// Close releases the multiplexer's pin claims and register mappings and
// closes the wrapped interface.
func (g *GPIO) Close() error {
	for n := range g.owned {
		pinclaim.Pins.Release(n)
	}
	g.owned = nil
	for i, r := range g.banks {
		if r != nil {
			r.Close()
			g.banks[i] = nil
		}
	}
	g.ctl.Close()
	g.pins = nil
	return g.base.Close()
}

func (g *GPIO) String() string {
	return fmt.Sprintf("%v pad multiplexer", g.fam)
}

// FastPin moves a single pin through its bank registers, skipping the
// generic interface. The handle stays valid until the GPIO that issued
// it is closed.
type FastPin struct {
	r   *mmio.Region
	bit uint32
	pin int
}

// Read samples the pin's input register.
func (p *FastPin) Read() hwio.Level {
	return hwio.Level(p.r.Read32(regmap.AM335xDataIn)&p.bit != 0)
}

// Write drives the pin through the set and clear registers, which touch
// only the addressed pin.
func (p *FastPin) Write(lv hwio.Level) {
	if lv == hwio.High {
		p.r.Write32(regmap.AM335xSet, p.bit)
	} else {
		p.r.Write32(regmap.AM335xClear, p.bit)
	}
}

// High drives the pin high.
func (p *FastPin) High() { p.r.Write32(regmap.AM335xSet, p.bit) }

// Low drives the pin low.
func (p *FastPin) Low() { p.r.Write32(regmap.AM335xClear, p.bit) }

func (p *FastPin) String() string { return fmt.Sprintf("gpio%d", p.pin) }
