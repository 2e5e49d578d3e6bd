// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uart opens hardware serial ports and defines the frame
// configuration they share with the bit-banged implementation in
// package softuart.
package uart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tarm/serial"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

// Parity is the parity bit appended to each frame.
type Parity byte

const (
	ParityNone Parity = 'N'
	ParityOdd  Parity = 'O'
	ParityEven Parity = 'E'
)

// Config describes the serial frame and timing. The zero value of a
// field means its default: 8 data bits, one stop bit, no parity. A zero
// ReadTimeout blocks reads until data arrives.
type Config struct {
	Baud        int
	Bits        int // data bits per frame, 5 to 8
	Parity      Parity
	StopBits    int // 1 or 2
	ReadTimeout time.Duration
}

// Normalized fills in the defaults and validates the result.
func (c Config) Normalized() (Config, error) {
	if c.Bits == 0 {
		c.Bits = 8
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.Parity == 0 {
		c.Parity = ParityNone
	}

	var err error
	switch {
	case c.Baud <= 0:
		err = fmt.Errorf("baud rate %d out of range", c.Baud)
	case c.Bits < 5 || c.Bits > 8:
		err = fmt.Errorf("%d data bits out of range", c.Bits)
	case c.StopBits != 1 && c.StopBits != 2:
		err = fmt.Errorf("%d stop bits out of range", c.StopBits)
	case c.Parity != ParityNone && c.Parity != ParityOdd && c.Parity != ParityEven:
		err = fmt.Errorf("unknown parity %q", c.Parity)
	}
	if err != nil {
		return Config{}, &hwio.Error{Kind: hwio.KindConfig, Op: "uart.config", Err: err}
	}
	return c, nil
}

// TTY is an open hardware serial port. It implements hwio.Port.
type TTY struct {
	p       *serial.Port
	name    string
	timeout time.Duration
}

var _ hwio.Port = (*TTY)(nil)

// Open opens the serial device at path with the given configuration.
func Open(path string, cfg Config) (*TTY, error) {
	cfg, err := cfg.Normalized()
	if err != nil {
		return nil, err
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        path,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        byte(cfg.Bits),
		Parity:      serial.Parity(cfg.Parity),
		StopBits:    serial.StopBits(cfg.StopBits),
	})
	if err != nil {
		return nil, &hwio.Error{Kind: hwio.Classify(err), Op: "uart.open", Resource: path, Err: err}
	}
	return &TTY{p: p, name: path, timeout: cfg.ReadTimeout}, nil
}

// Read fills b with received bytes. With a read timeout configured, a
// window with no data at all fails with KindTimeout; the port reports
// end of file in that case and the translation restores the meaning.
func (t *TTY) Read(b []byte) (int, error) {
	n, err := t.p.Read(b)
	if err == io.EOF && t.timeout > 0 {
		return n, &hwio.Error{Kind: hwio.KindTimeout, Op: "uart.read", Resource: t.name, Err: os.ErrDeadlineExceeded}
	}
	if err != nil {
		return n, &hwio.Error{Kind: hwio.Classify(err), Op: "uart.read", Resource: t.name, Err: err}
	}
	return n, nil
}

// Write sends b.
func (t *TTY) Write(b []byte) (int, error) {
	n, err := t.p.Write(b)
	if err != nil {
		return n, &hwio.Error{Kind: hwio.Classify(err), Op: "uart.write", Resource: t.name, Err: err}
	}
	if n != len(b) {
		return n, &hwio.Error{Kind: hwio.KindHardware, Op: "uart.write", Resource: t.name, Err: errors.New("short write")}
	}
	return n, nil
}

// Flush discards unsent and unread bytes buffered by the port.
func (t *TTY) Flush() error {
	if err := t.p.Flush(); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "uart.flush", Resource: t.name, Err: err}
	}
	return nil
}

// Close releases the port. Failures are logged, not returned.
func (t *TTY) Close() error {
	if err := t.p.Close(); err != nil {
		hwio.Logger().Warn("uart: close failed", "resource", t.name, "err", err)
	}
	return nil
}

func (t *TTY) String() string { return t.name }
