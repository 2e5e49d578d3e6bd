// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fastgpio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/regmap"
)

// openTemp opens a bank backed by a page-sized file, through the
// gpiomem path.
func openTemp(t *testing.T, f regmap.Family) *GPIO {
	t.Helper()
	dir := t.TempDir()
	dev := filepath.Join(dir, "gpiomem")
	if err := os.WriteFile(dev, make([]byte, regmap.BCMGPIOLen), 0o600); err != nil {
		t.Fatal(err)
	}
	g, err := open(regmap.Platform{Family: f, PeriphBase: 0x20000000}, dev, filepath.Join(dir, "mem"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestConfigureWritesFsel(t *testing.T) {
	g := openTemp(t, regmap.BCM2835)
	if err := g.ConfigurePin(17, hwio.Output, hwio.PullNone); err != nil {
		t.Fatalf("ConfigurePin: %v", err)
	}
	// Pin 17 lives in fsel word 1, three bits starting at 21.
	if got := g.r.Read32(1) >> 21 & 7; got != 1 {
		t.Errorf("fsel field: want 1; got %d", got)
	}

	if err := g.ConfigurePin(17, hwio.Alt5, hwio.PullNone); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if got := g.r.Read32(1) >> 21 & 7; got != 2 {
		t.Errorf("fsel field after alt5: want 2; got %d", got)
	}
}

func TestWriteRead(t *testing.T) {
	g := openTemp(t, regmap.BCM2835)
	if err := g.ConfigurePin(18, hwio.Output, hwio.PullNone); err != nil {
		t.Fatal(err)
	}

	if err := g.WritePin(18, hwio.High); err != nil {
		t.Fatal(err)
	}
	if got := g.r.Read32(7); got != 1<<18 {
		t.Errorf("set register: want %#x; got %#x", 1<<18, got)
	}
	if err := g.WritePin(18, hwio.Low); err != nil {
		t.Fatal(err)
	}
	if got := g.r.Read32(10); got != 1<<18 {
		t.Errorf("clear register: want %#x; got %#x", 1<<18, got)
	}

	// The level register is read-only hardware state; poke the backing
	// word to simulate the pin being driven.
	g.r.Write32(13, 1<<18)
	lv, err := g.ReadPin(18)
	if err != nil {
		t.Fatal(err)
	}
	if lv != hwio.High {
		t.Errorf("ReadPin: want High; got %v", lv)
	}
}

func TestPullBCM2711(t *testing.T) {
	g := openTemp(t, regmap.BCM2711)
	if err := g.ConfigurePin(20, hwio.Input, hwio.PullUp); err != nil {
		t.Fatal(err)
	}
	// Pin 20 sits in pull word 58, two bits starting at 8; 1 means up.
	if got := g.r.Read32(58) >> 8 & 3; got != 1 {
		t.Errorf("pull field: want 1; got %d", got)
	}
}

func TestLegacyPullRestsIdle(t *testing.T) {
	g := openTemp(t, regmap.BCM2835)
	if err := g.ConfigurePin(19, hwio.Input, hwio.PullDown); err != nil {
		t.Fatal(err)
	}
	// After the clocking sequence both control registers must be back
	// at zero or the next user of the bank inherits the selection.
	if got := g.r.Read32(regmap.GPPUD); got != 0 {
		t.Errorf("GPPUD left at %#x", got)
	}
	if got := g.r.Read32(38); got != 0 {
		t.Errorf("pull clock left at %#x", got)
	}
}

func TestConfigureErrors(t *testing.T) {
	g := openTemp(t, regmap.BCM2835)
	if err := g.ConfigurePin(54, hwio.Input, hwio.PullNone); hwio.KindOf(err) != hwio.KindNotFound {
		t.Errorf("pin 54: want KindNotFound; got %v", err)
	}
	if err := g.ConfigurePin(-1, hwio.Input, hwio.PullNone); hwio.KindOf(err) != hwio.KindNotFound {
		t.Errorf("pin -1: want KindNotFound; got %v", err)
	}
	if _, err := g.ReadPin(21); hwio.KindOf(err) != hwio.KindConfig {
		t.Errorf("unconfigured read: want KindConfig; got %v", err)
	}
	if err := g.WritePin(21, hwio.High); hwio.KindOf(err) != hwio.KindConfig {
		t.Errorf("unconfigured write: want KindConfig; got %v", err)
	}
}

func TestClaimConflict(t *testing.T) {
	g1 := openTemp(t, regmap.BCM2835)
	g2 := openTemp(t, regmap.BCM2835)
	if err := g1.ConfigurePin(22, hwio.Input, hwio.PullNone); err != nil {
		t.Fatal(err)
	}
	if err := g2.ConfigurePin(22, hwio.Input, hwio.PullNone); hwio.KindOf(err) != hwio.KindConfig {
		t.Errorf("double configure: want KindConfig; got %v", err)
	}
	if err := g1.Close(); err != nil {
		t.Fatal(err)
	}
	if err := g2.ConfigurePin(22, hwio.Input, hwio.PullNone); err != nil {
		t.Errorf("configure after release: %v", err)
	}
}

func TestFamilyRejected(t *testing.T) {
	_, err := open(regmap.Platform{Family: regmap.Edison}, "/dev/null", "/dev/null")
	if hwio.KindOf(err) != hwio.KindConfig {
		t.Errorf("want KindConfig; got %v", err)
	}
}

func TestMemFallback(t *testing.T) {
	dir := t.TempDir()
	plat := regmap.Platform{Family: regmap.BCM2835, PeriphBase: 0x20000000}
	phys, length := plat.GPIOBank()

	// No gpiomem; a sparse file stands in for physical memory.
	mem := filepath.Join(dir, "mem")
	f, err := os.Create(mem)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(int64(phys) + int64(length)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	g, err := open(plat, filepath.Join(dir, "gpiomem"), mem)
	if err != nil {
		t.Fatalf("fallback open: %v", err)
	}
	defer g.Close()
	if err := g.ConfigurePin(23, hwio.Output, hwio.PullNone); err != nil {
		t.Fatalf("ConfigurePin: %v", err)
	}
	if got := g.r.Read32(2) >> 9 & 7; got != 1 {
		t.Errorf("fsel field: want 1; got %d", got)
	}
}
