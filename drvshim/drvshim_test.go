// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drvshim

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/hwio/hwiotest"
)

func TestI2CReselectsOnChange(t *testing.T) {
	bus := hwiotest.NewBus()
	bus.Reply[0x39] = []byte{0x50}
	bus.Reply[0x48] = []byte{0x12}
	shim := NewI2C(bus)

	r := make([]byte, 1)
	if err := shim.Tx(0x39, []byte{0x8a}, r); err != nil {
		t.Fatal(err)
	}
	if r[0] != 0x50 {
		t.Errorf("first read: want 0x50; got %#02x", r[0])
	}
	if err := shim.Tx(0x39, []byte{0x8b}, r); err != nil {
		t.Fatal(err)
	}
	if err := shim.Tx(0x48, nil, r); err != nil {
		t.Fatal(err)
	}
	if r[0] != 0x12 {
		t.Errorf("read after switch: want 0x12; got %#02x", r[0])
	}

	// Two transactions at 0x39 select once; the switch to 0x48 selects again.
	if diff := cmp.Diff([]int{0x39, 0x48}, bus.Addrs); diff != "" {
		t.Errorf("selections mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]byte{{0x8a}, {0x8b}}, bus.Writes); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func TestI2CNoAckPassthrough(t *testing.T) {
	bus := hwiotest.NewBus()
	bus.NoAck[0x20] = true
	shim := NewI2C(bus)

	if err := shim.Tx(0x20, []byte{0}, nil); hwio.KindOf(err) != hwio.KindProtocol {
		t.Errorf("want KindProtocol; got %v", err)
	}
}

func TestSPITx(t *testing.T) {
	bus := hwiotest.NewClocked()
	shim := NewSPI(bus)

	rx := make([]byte, 3)
	if err := shim.Tx([]byte{0xde, 0xad, 0xbe}, rx); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0xde, 0xad, 0xbe}, rx); diff != "" {
		t.Errorf("loopback mismatch (-want +got):\n%s", diff)
	}
}

func TestSPITransferByte(t *testing.T) {
	bus := hwiotest.NewClocked()
	shim := NewSPI(bus)

	got, err := shim.Transfer(0x55)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x55 {
		t.Errorf("want 0x55; got %#02x", got)
	}
	if diff := cmp.Diff([][]byte{{0x55}}, bus.TXs); diff != "" {
		t.Errorf("tx log mismatch (-want +got):\n%s", diff)
	}
}
