// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package i2c talks to I2C peripherals through the Linux character
// devices /dev/i2c-N. The i2c-dev kernel module must be loaded.
//
// A Bus holds one selected peripheral address at a time; SetAddress
// switches between peripherals without reopening the device.
package i2c

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

const (
	i2c_SLAVE  = 0x0703
	i2c_TENBIT = 0x0704
	i2c_RDWR   = 0x0707

	i2c_M_RD  = 0x0001
	i2c_M_TEN = 0x0010

	// rdwrMaxMsgs is the kernel's I2C_RDWR_IOCTL_MAX_MSGS.
	rdwrMaxMsgs = 42
)

// i2cMsg mirrors struct i2c_msg. buf lands at offset 8 on both 32- and
// 64-bit kernels.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	_     uint16
	buf   uintptr
}

// rdwrData mirrors struct i2c_rdwr_ioctl_data.
type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

const tenbitMask = 1 << 12

// TenBit marks an I2C address as a 10-bit address. The mask does not
// collide with the address space, which uses at most 10 bits.
func TenBit(addr int) int { return addr | tenbitMask }

func resolveAddr(addr int) (int, bool) {
	return addr &^ tenbitMask, addr&tenbitMask == tenbitMask
}

// Bus is an open I2C adapter. It implements hwio.AddressedBus. Methods
// are not safe for concurrent use.
type Bus struct {
	f      *os.File
	name   string
	addr   int
	tenbit bool
}

var _ hwio.AddressedBus = (*Bus)(nil)

// Open opens I2C adapter n, i.e. /dev/i2c-n.
func Open(n int) (*Bus, error) {
	return OpenDevice(fmt.Sprintf("/dev/i2c-%d", n))
}

// OpenDevice opens the I2C adapter at the given device path.
func OpenDevice(path string) (*Bus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &hwio.Error{Kind: hwio.Classify(err), Op: "i2c.open", Resource: path, Err: err}
	}
	return &Bus{f: f, name: path, addr: -1}, nil
}

// SetAddress selects the peripheral that subsequent transactions talk
// to. Mark addr with TenBit for 10-bit addressing.
func (b *Bus) SetAddress(addr int) error {
	unmasked, tenbit := resolveAddr(addr)
	res := fmt.Sprintf("%s addr %#02x", b.name, unmasked)
	if unmasked < 0 || unmasked > 0x3ff || (!tenbit && unmasked > 0x7f) {
		return &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "i2c.addr",
			Resource: res,
			Err:      errors.New("address out of range"),
		}
	}
	var ten uintptr
	if tenbit {
		ten = 1
	}
	if err := b.ioctl(i2c_TENBIT, ten); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "i2c.addr", Resource: res, Err: err}
	}
	if err := b.ioctl(i2c_SLAVE, uintptr(unmasked)); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "i2c.addr", Resource: res, Err: err}
	}
	b.addr, b.tenbit = unmasked, tenbit
	return nil
}

// Tx performs one bus transaction against the selected address: w is
// written, then r is filled, under a single repeated start when both are
// non-empty. An address that does not acknowledge surfaces as a protocol
// error, not a hang; the adapter gives up on its own.
func (b *Bus) Tx(w, r []byte) error {
	if b.addr < 0 {
		return &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "i2c.tx",
			Resource: b.name,
			Err:      errors.New("no peripheral address selected"),
		}
	}
	if len(w) > 0xffff || len(r) > 0xffff {
		return b.txErr(hwio.KindConfig, errors.New("transfer longer than 65535 bytes"))
	}

	switch {
	case len(w) > 0 && len(r) > 0:
		return b.combined(w, r)
	case len(w) > 0:
		if n, err := b.f.Write(w); err != nil {
			return b.txErr(kindForTx(err), err)
		} else if n != len(w) {
			return b.txErr(hwio.KindProtocol, fmt.Errorf("short write: %d of %d bytes", n, len(w)))
		}
	case len(r) > 0:
		if n, err := b.f.Read(r); err != nil {
			return b.txErr(kindForTx(err), err)
		} else if n != len(r) {
			return b.txErr(hwio.KindProtocol, fmt.Errorf("short read: %d of %d bytes", n, len(r)))
		}
	}
	return nil
}

// combined issues a write followed by a read under one repeated start,
// which register-style peripherals require between sending the register
// number and reading it.
func (b *Bus) combined(w, r []byte) error {
	var flags uint16
	if b.tenbit {
		flags = i2c_M_TEN
	}
	msgs := [2]i2cMsg{
		{addr: uint16(b.addr), flags: flags, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))},
		{addr: uint16(b.addr), flags: flags | i2c_M_RD, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))},
	}
	data := rdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: 2}
	err := b.ioctl(i2c_RDWR, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	runtime.KeepAlive(&msgs)
	if err != nil {
		return b.txErr(kindForTx(err), err)
	}
	return nil
}

// ReadReg writes the register number and reads buf from it in one
// transaction.
func (b *Bus) ReadReg(reg byte, buf []byte) error {
	return b.Tx([]byte{reg}, buf)
}

// WriteReg writes the register number followed by buf.
func (b *Bus) WriteReg(reg byte, buf []byte) error {
	return b.Tx(append([]byte{reg}, buf...), nil)
}

// Close releases the adapter. Failures are logged, not returned.
func (b *Bus) Close() error {
	if err := b.f.Close(); err != nil {
		hwio.Logger().Warn("i2c: close failed", "resource", b.name, "err", err)
	}
	return nil
}

func (b *Bus) String() string { return b.name }

func (b *Bus) txErr(kind hwio.Kind, err error) error {
	return &hwio.Error{
		Kind:     kind,
		Op:       "i2c.tx",
		Resource: fmt.Sprintf("%s addr %#02x", b.name, b.addr),
		Err:      err,
	}
}

// kindForTx classifies transaction failures. The adapter answers ENXIO
// or EREMOTEIO when the peripheral does not acknowledge; both are the
// wire telling us no, not a missing device file.
func kindForTx(err error) hwio.Kind {
	switch {
	case errors.Is(err, unix.ENXIO), errors.Is(err, unix.EREMOTEIO):
		return hwio.KindProtocol
	default:
		return hwio.Classify(err)
	}
}

func (b *Bus) ioctl(req uint, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), uintptr(req), arg); errno != 0 {
		return errno
	}
	return nil
}
