// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

// mapTemp maps a fresh page-sized file standing in for a register
// window.
func mapTemp(t *testing.T) (*Region, string) {
	t.Helper()
	dev := filepath.Join(t.TempDir(), "mem")
	if err := os.WriteFile(dev, make([]byte, 4096), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := Map(dev, 0, 4096)
	if err != nil {
		t.Fatalf("Map(%q) failed: %v", dev, err)
	}
	return r, dev
}

func TestReadWrite(t *testing.T) {
	r, dev := mapTemp(t)
	defer r.Close()

	r.Write32(3, 0xdeadbeef)
	if got := r.Read32(3); got != 0xdeadbeef {
		t.Errorf("Read32(3): want %#x; got %#x", 0xdeadbeef, got)
	}

	// The mapping is shared, so the write must land in the backing file.
	b, err := os.ReadFile(dev)
	if err != nil {
		t.Fatal(err)
	}
	if got := binary.NativeEndian.Uint32(b[12:16]); got != 0xdeadbeef {
		t.Errorf("backing word 3: want %#x; got %#x", 0xdeadbeef, got)
	}
}

func TestRMW32(t *testing.T) {
	r, _ := mapTemp(t)
	defer r.Close()

	r.Write32(5, 0xffff0000)
	r.RMW32(5, 0x00ff00ff, 0x12345678)
	if got, want := r.Read32(5), uint32(0xff340078); got != want {
		t.Errorf("after RMW32: want %#x; got %#x", want, got)
	}
}

func TestMapShared(t *testing.T) {
	r1, dev := mapTemp(t)
	r2, err := Map(dev, 0, 4096)
	if err != nil {
		t.Fatalf("second Map failed: %v", err)
	}
	if r1 != r2 {
		t.Fatalf("second Map returned a distinct region")
	}
	if r1.refs != 2 {
		t.Errorf("refs: want 2; got %d", r1.refs)
	}

	// A shorter overlapping request shares the mapping, a longer one
	// cannot.
	r3, err := Map(dev, 0, 8)
	if err != nil {
		t.Fatalf("shorter Map failed: %v", err)
	}
	r3.Close()
	if _, err := Map(dev, 0, 8192); hwio.KindOf(err) != hwio.KindConfig {
		t.Errorf("oversized remap: want KindConfig; got %v", err)
	}

	if err := r1.Close(); err != nil {
		t.Fatal(err)
	}
	if r2.Words() == 0 {
		t.Fatalf("window unmapped while still referenced")
	}
	if err := r2.Close(); err != nil {
		t.Fatal(err)
	}
	if r2.Words() != 0 {
		t.Errorf("window still mapped after last Close")
	}
	if r2.Close() != nil {
		t.Errorf("extra Close must be a no-op")
	}

	// With the registry entry gone the window can be mapped afresh.
	r4, err := Map(dev, 0, 4096)
	if err != nil {
		t.Fatalf("remap after release failed: %v", err)
	}
	if r4 == r1 {
		t.Errorf("remap returned the released region")
	}
	r4.Close()
}

func TestMapErrors(t *testing.T) {
	dev := filepath.Join(t.TempDir(), "mem")
	if err := os.WriteFile(dev, make([]byte, 8192), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Map(dev, 12, 4096); hwio.KindOf(err) != hwio.KindConfig {
		t.Errorf("unaligned base: want KindConfig; got %v", err)
	}
	if _, err := Map(dev, 0, 6); hwio.KindOf(err) != hwio.KindConfig {
		t.Errorf("odd length: want KindConfig; got %v", err)
	}
	if _, err := Map(filepath.Join(t.TempDir(), "absent"), 0, 4096); hwio.KindOf(err) != hwio.KindNotFound {
		t.Errorf("missing device: want KindNotFound; got %v", err)
	}
}
