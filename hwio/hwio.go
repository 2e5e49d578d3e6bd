// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hwio defines the contracts shared by all peripheral backends:
// digital pin access, addressed and clocked bus transfers, and byte-stream
// ports.
//
// Backends implement one or more of the capability interfaces below.
// Device drivers accept the smallest interface covering what they use, so
// a driver written against DigitalIO runs unchanged on the sysfs, the
// register-mapped and the multiplexed backends.
//
// All operations block the calling goroutine until they complete. The
// backends start no goroutines of their own, and apart from the cases
// documented on each package they add no mutual exclusion: callers that
// share a backend across goroutines serialize transactions themselves,
// since only they know where a transaction begins and ends.
package hwio

import "io"

// Mode selects the function of a pin.
type Mode uint8

const (
	Input  Mode = iota // high-impedance input
	Output             // driven output
	Alt0               // hardware alternate functions, where the SoC has them
	Alt1
	Alt2
	Alt3
	Alt4
	Alt5
)

var modeNames = [...]string{"in", "out", "alt0", "alt1", "alt2", "alt3", "alt4", "alt5"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "mode(invalid)"
}

// IsAlt reports whether m selects a hardware alternate function.
func (m Mode) IsAlt() bool { return m >= Alt0 && m <= Alt5 }

// AltIndex returns n for AltN, and -1 for the plain modes.
func (m Mode) AltIndex() int {
	if !m.IsAlt() {
		return -1
	}
	return int(m - Alt0)
}

// Pull selects the resistor the SoC attaches to a pin.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

var pullNames = [...]string{"none", "up", "down"}

func (p Pull) String() string {
	if int(p) < len(pullNames) {
		return pullNames[p]
	}
	return "pull(invalid)"
}

// Level is the electrical state of a digital pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// BitOrder is the order bits of a word appear on a clocked bus.
type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// DigitalIO is implemented by backends that expose individual digital
// pins. Pin numbers follow the kernel's GPIO numbering for the board.
//
// A pin must be configured before it is read or written. Configuring
// claims the pin for the backend; a pin already claimed anywhere in the
// process fails with KindConfig. Close releases every claimed pin.
type DigitalIO interface {
	// ConfigurePin claims the pin and applies mode and pull.
	ConfigurePin(pin int, mode Mode, pull Pull) error

	// ReadPin returns the level of the pin.
	ReadPin(pin int) (Level, error)

	// WritePin drives the pin to the given level.
	WritePin(pin int, lv Level) error

	// Close releases the claimed pins and the underlying resources.
	Close() error
}

// AddressedBus is implemented by byte-oriented buses that select targets
// by address, such as I²C.
type AddressedBus interface {
	// SetAddress selects the target of subsequent transfers.
	SetAddress(addr int) error

	// Tx writes w to the target and then reads len(r) bytes into r within
	// one bus transaction. Either buffer may be empty. A target that does
	// not acknowledge fails with KindProtocol.
	Tx(w, r []byte) error

	// Close releases the bus handle.
	Close() error
}

// ClockedBus is implemented by synchronous full-duplex buses such as SPI.
type ClockedBus interface {
	// Configure sets the clock mode (0 to 3), the word size in bits and
	// the maximum clock speed in hertz.
	Configure(mode, bits, speed int) error

	// SetBitOrder sets the order bits of each word appear on the wire.
	SetBitOrder(o BitOrder) error

	// Transfer clocks tx out while reading into rx. Both slices must have
	// the same length unless one of them is empty.
	Transfer(tx, rx []byte) error

	// Close releases the bus handle.
	Close() error
}

// Port is a byte-stream channel such as a serial port.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data buffered by the port in both directions.
	Flush() error
}
