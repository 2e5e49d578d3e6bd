// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hwio

import "fmt"

// Pin couples a pin number with the backend that drives it, so a single
// value can be handed to device drivers.
type Pin struct {
	IO DigitalIO
	N  int
}

// Configure claims the pin and applies mode and pull.
func (p Pin) Configure(mode Mode, pull Pull) error {
	return p.IO.ConfigurePin(p.N, mode, pull)
}

// Read returns the level of the pin.
func (p Pin) Read() (Level, error) {
	return p.IO.ReadPin(p.N)
}

// Write drives the pin to lv.
func (p Pin) Write(lv Level) error {
	return p.IO.WritePin(p.N, lv)
}

// High drives the pin high.
func (p Pin) High() error { return p.Write(High) }

// Low drives the pin low.
func (p Pin) Low() error { return p.Write(Low) }

func (p Pin) String() string { return fmt.Sprintf("gpio%d", p.N) }
