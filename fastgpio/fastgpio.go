// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fastgpio drives BCM283x GPIO pins through the memory-mapped
// register bank. A pin changes level with a single register write, fast
// enough to clock software-timed protocols.
//
// The bank comes from /dev/gpiomem where available, which needs no
// root; /dev/mem is the fallback. Pins must be configured before use,
// and a pin held by another interface in this process is refused.
package fastgpio

import (
	"errors"
	"fmt"
	"time"

	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/internal/pinclaim"
	"github.com/yunkot/MicroPXL-sub002/mmio"
	"github.com/yunkot/MicroPXL-sub002/regmap"
)

const claimOwner = "fastgpio"

// GPIO drives a mapped BCM283x GPIO bank. It implements hwio.DigitalIO.
// Methods are not safe for concurrent use.
type GPIO struct {
	r    *mmio.Region
	plat regmap.Platform
	pins map[int]hwio.Mode
}

var _ hwio.DigitalIO = (*GPIO)(nil)

// Open maps the GPIO bank of the given platform.
func Open(plat regmap.Platform) (*GPIO, error) {
	return open(plat, "/dev/gpiomem", "/dev/mem")
}

func open(plat regmap.Platform, gpiomem, mem string) (*GPIO, error) {
	switch plat.Family {
	case regmap.BCM2835, regmap.BCM2711:
	default:
		return nil, &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "fastgpio.open",
			Resource: plat.Family.String(),
			Err:      errors.New("family has no memory-mapped gpio bank"),
		}
	}

	// gpiomem exposes just the GPIO bank, at offset zero.
	r, err := mmio.Map(gpiomem, 0, regmap.BCMGPIOLen)
	if err != nil {
		hwio.Logger().Debug("fastgpio: gpiomem unavailable, trying physical memory", "err", err)
		phys, length := plat.GPIOBank()
		if r, err = mmio.Map(mem, phys, length); err != nil {
			return nil, err
		}
	}
	return &GPIO{r: r, plat: plat, pins: make(map[int]hwio.Mode)}, nil
}

// ConfigurePin sets the function and pull of a pin. All modes are
// available, including the alternate functions.
func (g *GPIO) ConfigurePin(n int, mode hwio.Mode, pull hwio.Pull) error {
	res := fmt.Sprintf("gpio%d", n)
	if g.pins == nil {
		return &hwio.Error{Kind: hwio.KindConfig, Op: "fastgpio.configure", Resource: res, Err: errors.New("interface closed")}
	}
	if n < 0 || n >= g.plat.Family.Pins() {
		return &hwio.Error{
			Kind:     hwio.KindNotFound,
			Op:       "fastgpio.configure",
			Resource: res,
			Err:      fmt.Errorf("pin outside the %v bank", g.plat.Family),
		}
	}
	if _, ok := g.pins[n]; !ok {
		if err := pinclaim.Pins.Claim(n, claimOwner); err != nil {
			return &hwio.Error{Kind: hwio.KindConfig, Op: "fastgpio.configure", Resource: res, Err: err}
		}
	}

	reg, shift := regmap.FselReg(n)
	g.r.RMW32(reg, 7<<shift, regmap.FselValue(mode)<<shift)
	g.setPull(n, pull)
	g.pins[n] = mode
	return nil
}

func (g *GPIO) setPull(n int, pull hwio.Pull) {
	v := regmap.PullValue(g.plat.Family, pull)
	if g.plat.Family == regmap.BCM2711 {
		reg, shift := regmap.PullSelReg(n)
		g.r.RMW32(reg, 3<<shift, v<<shift)
		return
	}
	// Legacy scheme: the selection in GPPUD is clocked into the pin by
	// pulsing its bit in the clock register. The datasheet asks for 150
	// core cycles of setup and hold around the pulse.
	reg, bit := regmap.PullClkReg(n)
	g.r.Write32(regmap.GPPUD, v)
	time.Sleep(time.Microsecond)
	g.r.Write32(reg, bit)
	time.Sleep(time.Microsecond)
	g.r.Write32(regmap.GPPUD, 0)
	g.r.Write32(reg, 0)
}

// ReadPin returns the level of a configured pin.
func (g *GPIO) ReadPin(n int) (hwio.Level, error) {
	if _, ok := g.pins[n]; !ok {
		return hwio.Low, notConfigured("fastgpio.read", n)
	}
	reg, bit := regmap.LevReg(n)
	return hwio.Level(g.r.Read32(reg)&bit != 0), nil
}

// WritePin sets the output latch of a configured pin. The set and clear
// registers touch only the addressed pin, so no read-modify-write is
// needed.
func (g *GPIO) WritePin(n int, lv hwio.Level) error {
	if _, ok := g.pins[n]; !ok {
		return notConfigured("fastgpio.write", n)
	}
	var reg, bit uint32
	if lv == hwio.High {
		reg, bit = regmap.SetReg(n)
	} else {
		reg, bit = regmap.ClrReg(n)
	}
	g.r.Write32(reg, bit)
	return nil
}

// Close releases the claimed pins and the register mapping. Unmap
// failures are logged, not returned.
func (g *GPIO) Close() error {
	for n := range g.pins {
		pinclaim.Pins.Release(n)
	}
	g.pins = nil
	return g.r.Close()
}

func (g *GPIO) String() string {
	return fmt.Sprintf("%v gpio bank at %v", g.plat.Family, g.r)
}

func notConfigured(op string, n int) error {
	return &hwio.Error{
		Kind:     hwio.KindConfig,
		Op:       op,
		Resource: fmt.Sprintf("gpio%d", n),
		Err:      errors.New("pin not configured"),
	}
}
