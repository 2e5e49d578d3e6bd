// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package softuart implements an asynchronous serial port on GPIO pins
// by timing the bits in software. It serves boards whose hardware ports
// are taken or missing, at the price of burning the calling goroutine
// for the duration of each transfer.
//
// Frames follow the usual asynchronous layout: a low start bit, data
// bits LSB first, an optional parity bit and one or two high stop bits.
// The receiver samples each bit at its midpoint, anchored to the start
// edge of the frame, so clock drift resets with every byte. Bit
// boundaries come from an absolute schedule laid out when the frame
// begins; a pin operation finishing late shifts one sample, not the
// rest of the frame.
//
// Construction measures the cost of pin operations and refuses a baud
// rate the pins cannot keep, rather than producing garbage on the wire.
package softuart

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/uart"
)

// Config carries the frame layout plus the one knob specific to
// software timing.
type Config struct {
	uart.Config

	// Tolerance is the fraction of a bit period that a single pin
	// operation may consume before New refuses the baud rate. Sampling
	// aims at bit midpoints, so any value below one half keeps a late
	// sample inside the right bit; the default of 0.05 leaves margin
	// for scheduling jitter on real pins.
	Tolerance float64
}

// Port is a software serial port on two GPIO pins, or on a single pin
// in half-duplex. It implements hwio.Port.
//
// Reads and writes may run concurrently on a two-pin port. Two
// concurrent reads, two concurrent writes, or any overlap on a
// half-duplex port fail with KindConfig instead of corrupting a frame.
type Port struct {
	io     hwio.DigitalIO
	tx, rx int
	half   bool
	cfg    uart.Config
	bit    time.Duration
	res    string
	rxPull hwio.Pull

	txBusy atomic.Bool
	rxBusy atomic.Bool
	closed atomic.Bool
}

var _ hwio.Port = (*Port)(nil)

// New builds a port on txPin and rxPin of dio. The same pin for both
// makes the port half-duplex. The pins are configured here; they remain
// owned by dio, which keeps their claims until it is closed.
func New(dio hwio.DigitalIO, txPin, rxPin int, cfg Config) (*Port, error) {
	ncfg, err := cfg.Config.Normalized()
	if err != nil {
		return nil, err
	}
	tol := cfg.Tolerance
	if tol == 0 {
		tol = 0.05
	}
	u := &Port{
		io:   dio,
		tx:   txPin,
		rx:   rxPin,
		half: txPin == rxPin,
		cfg:  ncfg,
		bit:  time.Second / time.Duration(ncfg.Baud),
	}
	if u.half {
		u.res = fmt.Sprintf("gpio%d", txPin)
	} else {
		u.res = fmt.Sprintf("tx gpio%d rx gpio%d", txPin, rxPin)
	}
	if tol < 0 || tol >= 0.5 {
		return nil, u.err(hwio.KindConfig, "softuart.new", fmt.Errorf("tolerance %v out of range", tol))
	}

	if !u.half {
		if err := dio.ConfigurePin(txPin, hwio.Output, hwio.PullNone); err != nil {
			return nil, err
		}
		if err := dio.WritePin(txPin, hwio.High); err != nil {
			return nil, err
		}
	}
	if err := u.listen(); err != nil {
		return nil, err
	}

	cost, err := u.opCost()
	if err != nil {
		return nil, err
	}
	if float64(cost) > tol*float64(u.bit) {
		return nil, u.err(hwio.KindConfig, "softuart.new",
			fmt.Errorf("pin operations take %v, over %v%% of a %d baud bit", cost, tol*100, ncfg.Baud))
	}
	return u, nil
}

// listen puts the receive pin into input mode, idle high. Backends
// without pull control reject the pull-up request; the line then needs
// an external resistor, which is how such boards are wired anyway.
func (u *Port) listen() error {
	u.rxPull = hwio.PullUp
	err := u.io.ConfigurePin(u.rx, hwio.Input, hwio.PullUp)
	if err == nil {
		return nil
	}
	if hwio.KindOf(err) != hwio.KindConfig {
		return err
	}
	hwio.Logger().Debug("softuart: input pull unavailable, relying on external resistor",
		"resource", u.res, "err", err)
	u.rxPull = hwio.PullNone
	return u.io.ConfigurePin(u.rx, hwio.Input, hwio.PullNone)
}

// opCost measures what one pin operation costs on this backend.
func (u *Port) opCost() (time.Duration, error) {
	const samples = 16
	start := time.Now()
	for i := 0; i < samples; i++ {
		if _, err := u.io.ReadPin(u.rx); err != nil {
			return 0, err
		}
	}
	cost := time.Since(start)
	if !u.half {
		start = time.Now()
		for i := 0; i < samples; i++ {
			if err := u.io.WritePin(u.tx, hwio.High); err != nil {
				return 0, err
			}
		}
		if w := time.Since(start); w > cost {
			cost = w
		}
	}
	return cost / samples, nil
}

// Write sends p one frame per byte and returns once the final stop bit
// has been held for its full period.
func (u *Port) Write(p []byte) (int, error) {
	if u.closed.Load() {
		return 0, u.err(hwio.KindConfig, "softuart.write", errors.New("port closed"))
	}
	if !u.txBusy.CompareAndSwap(false, true) {
		return 0, u.err(hwio.KindConfig, "softuart.write", errors.New("concurrent write in progress"))
	}
	defer u.txBusy.Store(false)
	if u.half {
		if !u.rxBusy.CompareAndSwap(false, true) {
			return 0, u.err(hwio.KindConfig, "softuart.write", errors.New("half-duplex line is receiving"))
		}
		defer u.rxBusy.Store(false)
		if err := u.turnaroundTx(); err != nil {
			return 0, err
		}
		defer u.turnaroundRx()
	}

	for i := range p {
		if err := u.writeByte(p[i]); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// turnaroundTx takes the half-duplex line over for transmitting and
// lets it idle high for one bit so the far end sees a clean mark before
// the first start edge.
func (u *Port) turnaroundTx() error {
	if err := u.io.ConfigurePin(u.tx, hwio.Output, hwio.PullNone); err != nil {
		return err
	}
	if err := u.io.WritePin(u.tx, hwio.High); err != nil {
		return err
	}
	spinUntil(time.Now().Add(u.bit))
	return nil
}

func (u *Port) turnaroundRx() {
	if err := u.io.ConfigurePin(u.rx, hwio.Input, u.rxPull); err != nil {
		hwio.Logger().Warn("softuart: returning line to input failed", "resource", u.res, "err", err)
	}
}

func (u *Port) writeByte(b byte) error {
	t0 := time.Now()
	if err := u.io.WritePin(u.tx, hwio.Low); err != nil {
		return err
	}
	slot := 1
	for k := 0; k < u.cfg.Bits; k++ {
		spinUntil(t0.Add(time.Duration(slot) * u.bit))
		if err := u.io.WritePin(u.tx, hwio.Level(b>>k&1 == 1)); err != nil {
			return err
		}
		slot++
	}
	if lv, ok := parityLevel(b, u.cfg.Bits, u.cfg.Parity); ok {
		spinUntil(t0.Add(time.Duration(slot) * u.bit))
		if err := u.io.WritePin(u.tx, lv); err != nil {
			return err
		}
		slot++
	}
	spinUntil(t0.Add(time.Duration(slot) * u.bit))
	if err := u.io.WritePin(u.tx, hwio.High); err != nil {
		return err
	}
	slot += u.cfg.StopBits
	spinUntil(t0.Add(time.Duration(slot) * u.bit))
	return nil
}

// Read fills p with received frames. Each byte gets a fresh window of
// ReadTimeout to begin; when the line stays idle past the window, bytes
// already received are returned and an empty read fails with
// KindTimeout. A frame with bad parity or a missing stop bit stops the
// read with KindProtocol after the good bytes.
func (u *Port) Read(p []byte) (int, error) {
	if u.closed.Load() {
		return 0, u.err(hwio.KindConfig, "softuart.read", errors.New("port closed"))
	}
	if len(p) == 0 {
		return 0, nil
	}
	if !u.rxBusy.CompareAndSwap(false, true) {
		return 0, u.err(hwio.KindConfig, "softuart.read", errors.New("concurrent read in progress"))
	}
	defer u.rxBusy.Store(false)
	if u.half {
		if !u.txBusy.CompareAndSwap(false, true) {
			return 0, u.err(hwio.KindConfig, "softuart.read", errors.New("half-duplex line is transmitting"))
		}
		defer u.txBusy.Store(false)
	}

	for i := range p {
		var deadline time.Time
		if u.cfg.ReadTimeout > 0 {
			deadline = time.Now().Add(u.cfg.ReadTimeout)
		}
		b, err := u.readByte(deadline)
		if err != nil {
			if errors.Is(err, errNoStart) {
				if i > 0 {
					return i, nil
				}
				return 0, u.err(hwio.KindTimeout, "softuart.read", os.ErrDeadlineExceeded)
			}
			return i, err
		}
		p[i] = b
	}
	return len(p), nil
}

var errNoStart = errors.New("no start bit")

func (u *Port) readByte(deadline time.Time) (byte, error) {
	var t0 time.Time
	for {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return 0, errNoStart
		}
		lv, err := u.io.ReadPin(u.rx)
		if err != nil {
			return 0, err
		}
		if lv == hwio.High {
			runtime.Gosched()
			continue
		}
		// Confirm the edge half a bit in: noise shorter than that is
		// not a start bit.
		t0 = time.Now()
		spinUntil(t0.Add(u.bit / 2))
		if lv, err = u.io.ReadPin(u.rx); err != nil {
			return 0, err
		}
		if lv == hwio.Low {
			break
		}
	}

	mid := u.bit / 2
	var b byte
	slot := 1
	for k := 0; k < u.cfg.Bits; k++ {
		spinUntil(t0.Add(mid + time.Duration(slot)*u.bit))
		lv, err := u.io.ReadPin(u.rx)
		if err != nil {
			return 0, err
		}
		if lv == hwio.High {
			b |= 1 << k
		}
		slot++
	}
	if want, ok := parityLevel(b, u.cfg.Bits, u.cfg.Parity); ok {
		spinUntil(t0.Add(mid + time.Duration(slot)*u.bit))
		lv, err := u.io.ReadPin(u.rx)
		if err != nil {
			return 0, err
		}
		if lv != want {
			return b, u.err(hwio.KindProtocol, "softuart.read", fmt.Errorf("parity mismatch in frame %#02x", b))
		}
		slot++
	}
	spinUntil(t0.Add(mid + time.Duration(slot)*u.bit))
	lv, err := u.io.ReadPin(u.rx)
	if err != nil {
		return 0, err
	}
	if lv == hwio.Low {
		return b, u.err(hwio.KindProtocol, "softuart.read", fmt.Errorf("missing stop bit after frame %#02x", b))
	}
	return b, nil
}

// Flush is a no-op: the port buffers nothing.
func (u *Port) Flush() error { return nil }

// Close marks the port closed. The pins stay configured and claimed by
// the pin interface that owns them.
func (u *Port) Close() error {
	u.closed.Store(true)
	return nil
}

func (u *Port) String() string {
	return fmt.Sprintf("softuart %d baud on %s", u.cfg.Baud, u.res)
}

func (u *Port) err(k hwio.Kind, op string, e error) error {
	return &hwio.Error{Kind: k, Op: op, Resource: u.res, Err: e}
}

// spinUntil burns the goroutine until t, yielding so the other end of a
// loopback on one OS thread still runs.
func spinUntil(t time.Time) {
	for time.Now().Before(t) {
		runtime.Gosched()
	}
}
