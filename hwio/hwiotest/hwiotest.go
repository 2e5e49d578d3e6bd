// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hwiotest provides in-memory stand-ins for the hwio interfaces
// so protocol and driver code can be tested without hardware.
//
// Unlike the real backends the fakes are safe for concurrent use, which
// lets a test drive both ends of a connection from separate goroutines.
package hwiotest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

type fakePin struct {
	mode  hwio.Mode
	pull  hwio.Pull
	level hwio.Level
}

// GPIO is an in-memory hwio.DigitalIO. Pins configured as inputs take
// the level their pull resistor implies until SetPin or a wired peer
// overrides it.
type GPIO struct {
	mu     sync.Mutex
	pins   map[int]*fakePin
	wires  map[int]int
	ops    []string
	closed bool
}

var _ hwio.DigitalIO = (*GPIO)(nil)

// NewGPIO returns an empty fake with no pins configured.
func NewGPIO() *GPIO {
	return &GPIO{pins: make(map[int]*fakePin), wires: make(map[int]int)}
}

// Wire ties two pins together: a level written to one is seen by reads
// of the other, in both directions.
func (g *GPIO) Wire(a, b int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wires[a], g.wires[b] = b, a
}

// ConfigurePin records the configuration and seeds the pin's level from
// its pull.
func (g *GPIO) ConfigurePin(n int, mode hwio.Mode, pull hwio.Pull) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fakeErr(hwio.KindConfig, "configure", n, "interface closed")
	}
	g.ops = append(g.ops, fmt.Sprintf("configure %d %s %s", n, mode, pull))
	p, ok := g.pins[n]
	if !ok {
		p = &fakePin{}
		g.pins[n] = p
	}
	p.mode, p.pull = mode, pull
	p.level = hwio.Level(pull == hwio.PullUp)
	return nil
}

// ReadPin returns the pin's current level. Reads are not recorded in
// the op log: bit-banged protocols poll a pin thousands of times per
// frame, and growing the log inside the polling loop would disturb the
// very timing under test.
func (g *GPIO) ReadPin(n int) (hwio.Level, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pins[n]
	if !ok {
		return hwio.Low, fakeErr(hwio.KindConfig, "read", n, "pin not configured")
	}
	return p.level, nil
}

// WritePin drives the pin and any pin wired to it.
func (g *GPIO) WritePin(n int, lv hwio.Level) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pins[n]
	if !ok {
		return fakeErr(hwio.KindConfig, "write", n, "pin not configured")
	}
	g.ops = append(g.ops, fmt.Sprintf("write %d %s", n, lv))
	p.level = lv
	if peer, ok := g.wires[n]; ok {
		if pp, ok := g.pins[peer]; ok {
			pp.level = lv
		}
	}
	return nil
}

// SetPin forces the level of a pin, standing in for an external signal.
func (g *GPIO) SetPin(n int, lv hwio.Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pins[n]; ok {
		p.level = lv
	}
}

// Mode returns the configured mode of a pin.
func (g *GPIO) Mode(n int) hwio.Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pins[n]; ok {
		return p.mode
	}
	return hwio.Input
}

// Ops returns the calls made so far, oldest first.
func (g *GPIO) Ops() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.ops))
	copy(out, g.ops)
	return out
}

// Close records the close; the fake stays inspectable afterwards.
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ops = append(g.ops, "close")
	g.closed = true
	return nil
}

// Bus is an in-memory hwio.AddressedBus. Writes are captured in Writes;
// reads answer with the bytes registered in Reply, repeated as needed.
// Addresses present in NoAck fail transactions like a silent wire.
type Bus struct {
	mu     sync.Mutex
	addr   int
	NoAck  map[int]bool
	Reply  map[int][]byte
	Writes [][]byte
	Addrs  []int // every address selected, in order
}

var _ hwio.AddressedBus = (*Bus)(nil)

// NewBus returns a bus with no address selected.
func NewBus() *Bus {
	return &Bus{addr: -1, NoAck: make(map[int]bool), Reply: make(map[int][]byte)}
}

// SetAddress selects the peripheral. Like the real adapters it succeeds
// even for an absent device; the failure comes at transaction time.
func (b *Bus) SetAddress(addr int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addr = addr
	b.Addrs = append(b.Addrs, addr)
	return nil
}

// Tx captures w and fills r from the selected peripheral's reply.
func (b *Bus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.addr < 0 {
		return &hwio.Error{Kind: hwio.KindConfig, Op: "hwiotest.tx", Resource: "fake bus", Err: errors.New("no peripheral address selected")}
	}
	if b.NoAck[b.addr] {
		return &hwio.Error{
			Kind:     hwio.KindProtocol,
			Op:       "hwiotest.tx",
			Resource: fmt.Sprintf("fake bus addr %#02x", b.addr),
			Err:      errors.New("no acknowledge"),
		}
	}
	if len(w) > 0 {
		b.Writes = append(b.Writes, append([]byte(nil), w...))
	}
	reply := b.Reply[b.addr]
	for i := range r {
		if len(reply) > 0 {
			r[i] = reply[i%len(reply)]
		} else {
			r[i] = 0
		}
	}
	return nil
}

func (b *Bus) Close() error { return nil }

// Clocked is an in-memory hwio.ClockedBus wired in loopback: every
// transfer echoes the outgoing bytes back on the incoming side, like a
// jumper between MOSI and MISO. Set OnTransfer to answer differently.
type Clocked struct {
	mu         sync.Mutex
	Mode       int
	Bits       int
	Speed      int
	Order      hwio.BitOrder
	TXs        [][]byte
	OnTransfer func(tx, rx []byte) error
}

var _ hwio.ClockedBus = (*Clocked)(nil)

func NewClocked() *Clocked { return &Clocked{} }

func (c *Clocked) Configure(mode, bits, speed int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Mode, c.Bits, c.Speed = mode, bits, speed
	return nil
}

func (c *Clocked) SetBitOrder(order hwio.BitOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Order = order
	return nil
}

func (c *Clocked) Transfer(tx, rx []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(tx) > 0 {
		c.TXs = append(c.TXs, append([]byte(nil), tx...))
	}
	if c.OnTransfer != nil {
		return c.OnTransfer(tx, rx)
	}
	copy(rx, tx)
	return nil
}

func (c *Clocked) Close() error { return nil }

func fakeErr(kind hwio.Kind, op string, n int, msg string) error {
	return &hwio.Error{
		Kind:     kind,
		Op:       "hwiotest." + op,
		Resource: fmt.Sprintf("gpio%d", n),
		Err:      errors.New(msg),
	}
}
