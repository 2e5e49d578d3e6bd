// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uart

import (
	"testing"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

func TestNormalizedDefaults(t *testing.T) {
	c, err := Config{Baud: 9600}.Normalized()
	if err != nil {
		t.Fatalf("Normalized: %v", err)
	}
	if c.Bits != 8 || c.StopBits != 1 || c.Parity != ParityNone {
		t.Errorf("defaults: want 8 bits, 1 stop, no parity; got %d bits, %d stop, parity %q", c.Bits, c.StopBits, c.Parity)
	}
}

func TestNormalizedRejects(t *testing.T) {
	tc := []struct {
		name string
		cfg  Config
	}{
		{"zero baud", Config{}},
		{"negative baud", Config{Baud: -9600}},
		{"narrow word", Config{Baud: 9600, Bits: 4}},
		{"wide word", Config{Baud: 9600, Bits: 9}},
		{"bad stop bits", Config{Baud: 9600, StopBits: 3}},
		{"bad parity", Config{Baud: 9600, Parity: 'X'}},
	}
	for _, tt := range tc {
		if _, err := tt.cfg.Normalized(); hwio.KindOf(err) != hwio.KindConfig {
			t.Errorf("%s: want KindConfig; got %v", tt.name, err)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open("/dev/ttyU404", Config{Baud: 115200})
	if hwio.KindOf(err) != hwio.KindNotFound {
		t.Errorf("want KindNotFound; got %v", err)
	}
}
