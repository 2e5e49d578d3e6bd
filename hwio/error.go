// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwio

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Kind classifies the cause of a failed peripheral operation. The kinds
// are shared by every backend so callers can branch on the cause without
// knowing which mechanism sits underneath.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindPermission: the process lacks the rights to open the device
	// node or map the physical memory range.
	KindPermission

	// KindNotFound: the device, bus or pin does not exist on this board.
	KindNotFound

	// KindConfig: the requested configuration is invalid, unsupported by
	// the backend, or conflicts with an existing claim.
	KindConfig

	// KindProtocol: the remote side violated the bus protocol, for
	// example by not acknowledging its address or by breaking framing.
	KindProtocol

	// KindTimeout: the operation did not complete within its deadline.
	KindTimeout

	// KindHardware: the controller itself reported a fault.
	KindHardware
)

var kindNames = [...]string{
	"unknown error",
	"permission denied",
	"not found",
	"invalid configuration",
	"protocol error",
	"timeout",
	"hardware fault",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown error"
}

// Error describes a failed operation on a physical resource. Resource
// names the concrete thing that failed (a device path, an address on a
// bus, a pin), since by the time an error reaches the caller the backend
// that produced it is no longer obvious.
type Error struct {
	Kind     Kind
	Op       string // failing operation, such as "i2c.tx"
	Resource string // physical resource, such as "/dev/i2c-1 addr 0x39"
	Err      error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	s := e.Op
	if e.Resource != "" {
		s += " " + e.Resource
	}
	if e.Err != nil {
		return s + ": " + e.Err.Error()
	}
	return s + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind recorded in err, or KindUnknown when err
// carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Classify maps operating system errors onto kinds. Backends refine the
// result where an errno means something bus-specific; EREMOTEIO is
// protocol-level on I²C, for example.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, os.ErrPermission):
		return KindPermission
	case errors.Is(err, os.ErrNotExist), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return KindNotFound
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, unix.ETIMEDOUT):
		return KindTimeout
	case errors.Is(err, unix.EREMOTEIO):
		return KindProtocol
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.EBUSY), errors.Is(err, unix.ENOTSUP):
		return KindConfig
	case errors.Is(err, unix.EIO):
		return KindHardware
	}
	return KindUnknown
}
