// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sysfs drives GPIO lines through the sysfs class interface,
// normally rooted at /sys/class/gpio. It works on any Linux kernel with
// the interface enabled and needs no register knowledge; the pin numbers
// it takes are the kernel's global GPIO numbers.
//
// The interface has no access to pull resistors or alternate pin
// functions, so requests for either fail with a configuration error
// rather than being dropped. Platform backends layer those on top.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/internal/pinclaim"
)

const claimOwner = "sysfs"

type pinState struct {
	value *os.File

	// exported records that this instance wrote the export file, and so
	// owes the matching unexport on Close. A line someone else exported
	// is used but left exported.
	exported bool
}

// GPIO accesses GPIO lines below a sysfs class directory. It implements
// hwio.DigitalIO. Methods are not safe for concurrent use; the claim
// registry, not a lock, is what keeps two instances off the same line.
type GPIO struct {
	root           string
	settleAttempts int
	settleDelay    time.Duration
	pins           map[int]*pinState
}

var _ hwio.DigitalIO = (*GPIO)(nil)

// New opens the standard /sys/class/gpio tree.
func New() (*GPIO, error) { return NewAt("/sys/class/gpio") }

// NewAt opens a sysfs GPIO tree below root.
func NewAt(root string) (*GPIO, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, &hwio.Error{Kind: hwio.Classify(err), Op: "sysfs.open", Resource: root, Err: err}
	}
	return &GPIO{
		root:           root,
		settleAttempts: 10,
		settleDelay:    time.Millisecond,
		pins:           make(map[int]*pinState),
	}, nil
}

func (g *GPIO) pinDir(n int) string {
	return filepath.Join(g.root, fmt.Sprintf("gpio%d", n))
}

// ConfigurePin exports the line if needed and sets its direction. Only
// Input and Output are available; alternate functions and pulls need a
// platform backend and are rejected here.
func (g *GPIO) ConfigurePin(n int, mode hwio.Mode, pull hwio.Pull) error {
	res := fmt.Sprintf("gpio%d", n)
	if g.pins == nil {
		return &hwio.Error{Kind: hwio.KindConfig, Op: "sysfs.configure", Resource: res, Err: errors.New("interface closed")}
	}
	if mode.IsAlt() {
		return &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "sysfs.configure",
			Resource: res,
			Err:      fmt.Errorf("mode %v needs a platform backend", mode),
		}
	}
	if pull != hwio.PullNone {
		return &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "sysfs.configure",
			Resource: res,
			Err:      errors.New("pull resistors are not reachable through sysfs"),
		}
	}

	st, ok := g.pins[n]
	if !ok {
		if err := pinclaim.Pins.Claim(n, claimOwner); err != nil {
			return &hwio.Error{Kind: hwio.KindConfig, Op: "sysfs.configure", Resource: res, Err: err}
		}
		var err error
		if st, err = g.export(n); err != nil {
			pinclaim.Pins.Release(n)
			return err
		}
		g.pins[n] = st
	}

	dir := "in"
	if mode == hwio.Output {
		dir = "out"
	}
	if err := writeAttr(filepath.Join(g.pinDir(n), "direction"), dir); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "sysfs.configure", Resource: res, Err: err}
	}
	return nil
}

// export makes gpioN appear and opens its value attribute. The kernel
// creates the directory asynchronously and udev adjusts its ownership
// afterwards, so the open is retried with doubling backoff until the
// attribute answers or the attempts run out.
func (g *GPIO) export(n int) (*pinState, error) {
	res := fmt.Sprintf("gpio%d", n)
	exported := true
	if err := writeAttr(filepath.Join(g.root, "export"), strconv.Itoa(n)); err != nil {
		if !errors.Is(err, unix.EBUSY) {
			return nil, &hwio.Error{Kind: hwio.Classify(err), Op: "sysfs.export", Resource: res, Err: err}
		}
		// Already exported, likely by a previous run that did not get
		// to clean up. Use the line but leave it exported on Close.
		exported = false
	}

	delay := g.settleDelay
	var (
		f   *os.File
		err error
	)
	for i := 0; ; i++ {
		f, err = os.OpenFile(filepath.Join(g.pinDir(n), "value"), os.O_RDWR, 0)
		if err == nil {
			break
		}
		retriable := errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist)
		if !retriable || i == g.settleAttempts-1 {
			return nil, &hwio.Error{Kind: hwio.Classify(err), Op: "sysfs.export", Resource: res, Err: err}
		}
		time.Sleep(delay)
		delay *= 2
	}
	return &pinState{value: f, exported: exported}, nil
}

// ReadPin returns the current level of a configured line.
func (g *GPIO) ReadPin(n int) (hwio.Level, error) {
	st, ok := g.pins[n]
	if !ok {
		return hwio.Low, notConfigured("sysfs.read", n)
	}
	var b [1]byte
	if _, err := st.value.ReadAt(b[:], 0); err != nil {
		return hwio.Low, &hwio.Error{Kind: hwio.Classify(err), Op: "sysfs.read", Resource: fmt.Sprintf("gpio%d", n), Err: err}
	}
	return hwio.Level(b[0] != '0'), nil
}

// WritePin sets the level of a line configured as output.
func (g *GPIO) WritePin(n int, lv hwio.Level) error {
	st, ok := g.pins[n]
	if !ok {
		return notConfigured("sysfs.write", n)
	}
	b := byte('0')
	if lv == hwio.High {
		b = '1'
	}
	if _, err := st.value.WriteAt([]byte{b}, 0); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "sysfs.write", Resource: fmt.Sprintf("gpio%d", n), Err: err}
	}
	return nil
}

// SetActiveLow inverts the polarity the kernel applies to reads and
// writes of the line.
func (g *GPIO) SetActiveLow(n int, invert bool) error {
	if _, ok := g.pins[n]; !ok {
		return notConfigured("sysfs.polarity", n)
	}
	v := "0"
	if invert {
		v = "1"
	}
	if err := writeAttr(filepath.Join(g.pinDir(n), "active_low"), v); err != nil {
		return &hwio.Error{Kind: hwio.Classify(err), Op: "sysfs.polarity", Resource: fmt.Sprintf("gpio%d", n), Err: err}
	}
	return nil
}

// Close releases every line this instance exported. Unexport failures
// are logged and do not stop the remaining lines from being released.
func (g *GPIO) Close() error {
	for n, st := range g.pins {
		st.value.Close()
		if st.exported {
			if err := writeAttr(filepath.Join(g.root, "unexport"), strconv.Itoa(n)); err != nil {
				hwio.Logger().Warn("sysfs: unexport failed", "resource", fmt.Sprintf("gpio%d", n), "err", err)
			}
		}
		pinclaim.Pins.Release(n)
	}
	g.pins = nil
	return nil
}

func notConfigured(op string, n int) error {
	return &hwio.Error{
		Kind:     hwio.KindConfig,
		Op:       op,
		Resource: fmt.Sprintf("gpio%d", n),
		Err:      errors.New("pin not configured"),
	}
}

func writeAttr(path, s string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(s)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}
