// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spi exchanges bytes with SPI peripherals through the Linux
// spidev character devices /dev/spidevB.C.
package spi

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

// SPI modes combine clock polarity and phase. CPOL is bit 1, CPHA is
// bit 0, matching the kernel's SPI_MODE_0..3.
const (
	Mode0 = 0x0
	Mode1 = 0x1
	Mode2 = 0x2
	Mode3 = 0x3
)

// ioctl request encoding, as asm-generic/ioctl.h lays it out.
const (
	magic = 107

	nrbits   = 8
	typebits = 8
	sizebits = 14
	dirbits  = 2

	nrshift   = 0
	typeshift = nrshift + nrbits
	sizeshift = typeshift + typebits
	dirshift  = sizeshift + sizebits

	none  = 0
	write = 1
	read  = 2
)

// payload mirrors struct spi_ioc_transfer. The pointers travel as __u64
// regardless of the platform's word size.
type payload struct {
	tx          uint64
	rx          uint64
	length      uint32
	speedHz     uint32
	delay       uint16
	bitsPerWord uint8
	csChange    uint8
	txNBits     uint8
	rxNBits     uint8
	pad         uint16
}

// Device is an open spidev chip select. It implements hwio.ClockedBus.
// Methods are not safe for concurrent use.
type Device struct {
	f          *os.File
	name       string
	speedHz    uint32
	bits       uint8
	configured bool
}

var _ hwio.ClockedBus = (*Device)(nil)

// Open opens chip select cs on SPI bus n, i.e. /dev/spidevN.C.
func Open(n, cs int) (*Device, error) {
	return OpenDevice(fmt.Sprintf("/dev/spidev%d.%d", n, cs))
}

// OpenDevice opens the spidev node at the given path.
func OpenDevice(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &hwio.Error{Kind: hwio.Classify(err), Op: "spi.open", Resource: path, Err: err}
	}
	return &Device{f: f, name: path}, nil
}

// Configure sets the mode, word size and maximum clock speed in Hz. It
// must run before the first Transfer.
func (d *Device) Configure(mode, bits, speed int) error {
	switch {
	case mode < Mode0 || mode > Mode3:
		return d.confErr(fmt.Errorf("mode %d out of range", mode))
	case bits < 1 || bits > 32:
		return d.confErr(fmt.Errorf("%d bits per word out of range", bits))
	case speed <= 0:
		return d.confErr(fmt.Errorf("speed %d Hz out of range", speed))
	}

	m := uint8(mode)
	if err := d.ioctl(ioc(write, magic, 1, 1), uintptr(unsafe.Pointer(&m))); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "spi.configure", Resource: d.name, Err: err}
	}
	b := uint8(bits)
	if err := d.ioctl(ioc(write, magic, 3, 1), uintptr(unsafe.Pointer(&b))); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "spi.configure", Resource: d.name, Err: err}
	}
	s := uint32(speed)
	if err := d.ioctl(ioc(write, magic, 4, 4), uintptr(unsafe.Pointer(&s))); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "spi.configure", Resource: d.name, Err: err}
	}
	d.bits, d.speedHz, d.configured = b, s, true
	return nil
}

// SetBitOrder selects the shift direction for subsequent transfers. Not
// every controller can shift LSB first; those reject the request.
func (d *Device) SetBitOrder(o hwio.BitOrder) error {
	var lsb uint8
	if o == hwio.LSBFirst {
		lsb = 1
	}
	if err := d.ioctl(ioc(write, magic, 2, 1), uintptr(unsafe.Pointer(&lsb))); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "spi.order", Resource: d.name, Err: err}
	}
	return nil
}

// Transfer clocks tx out and rx in simultaneously. Either side may be
// nil for a half-duplex write or read; when both are given their
// lengths must match, as every clocked bit moves a bit each way.
func (d *Device) Transfer(tx, rx []byte) error {
	if !d.configured {
		return d.xferErr(hwio.KindConfig, errors.New("transfer before Configure"))
	}
	if len(tx) > 0 && len(rx) > 0 && len(tx) != len(rx) {
		return d.xferErr(hwio.KindConfig, fmt.Errorf("tx %d bytes, rx %d bytes", len(tx), len(rx)))
	}
	n := len(tx)
	if n == 0 {
		n = len(rx)
	}
	if n == 0 {
		return nil
	}

	p := payload{
		tx:          ref(tx),
		rx:          ref(rx),
		length:      uint32(n),
		speedHz:     d.speedHz,
		bitsPerWord: d.bits,
	}
	err := d.ioctl(msgArg(1), uintptr(unsafe.Pointer(&p)))
	runtime.KeepAlive(tx)
	runtime.KeepAlive(rx)
	if err != nil {
		return d.xferErr(hwio.Classify(err), err)
	}
	return nil
}

// Close releases the chip select. Failures are logged, not returned.
func (d *Device) Close() error {
	if err := d.f.Close(); err != nil {
		hwio.Logger().Warn("spi: close failed", "resource", d.name, "err", err)
	}
	return nil
}

func (d *Device) String() string { return d.name }

func (d *Device) confErr(err error) error {
	return &hwio.Error{Kind: hwio.KindConfig, Op: "spi.configure", Resource: d.name, Err: err}
}

func (d *Device) xferErr(kind hwio.Kind, err error) error {
	return &hwio.Error{Kind: kind, Op: "spi.xfer", Resource: d.name, Err: err}
}

func ref(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << dirshift) | (typ << typeshift) | (nr << nrshift) | (size << sizeshift)
}

func msgArg(n uint32) uintptr {
	return uintptr(0x40006B00 + (n * 0x200000))
}

func (d *Device) ioctl(a1, a2 uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), a1, a2); errno != 0 {
		return errno
	}
	return nil
}
