// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package softuart

import (
	"testing"

	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/uart"
)

func TestParityLevel(t *testing.T) {
	tc := []struct {
		b      byte
		nbits  int
		parity uart.Parity
		want   hwio.Level
	}{
		{0x55, 8, uart.ParityEven, hwio.Low},  // four ones, already even
		{0x55, 8, uart.ParityOdd, hwio.High},  // make the count five
		{0x01, 8, uart.ParityEven, hwio.High}, // one becomes two
		{0x00, 8, uart.ParityEven, hwio.Low},
		{0x00, 8, uart.ParityOdd, hwio.High},
		{0x07, 7, uart.ParityEven, hwio.High},
		{0xff, 7, uart.ParityEven, hwio.High}, // masked to seven ones
	}
	for _, tt := range tc {
		got, ok := parityLevel(tt.b, tt.nbits, tt.parity)
		if !ok {
			t.Errorf("parityLevel(%#02x, %d, %c): no parity bit", tt.b, tt.nbits, tt.parity)
			continue
		}
		if got != tt.want {
			t.Errorf("parityLevel(%#02x, %d, %c): want %v; got %v", tt.b, tt.nbits, tt.parity, tt.want, got)
		}
	}

	if _, ok := parityLevel(0x55, 8, uart.ParityNone); ok {
		t.Errorf("ParityNone must carry no parity bit")
	}
}

func TestDataMask(t *testing.T) {
	tc := []struct {
		nbits int
		want  byte
	}{
		{5, 0x1f},
		{6, 0x3f},
		{7, 0x7f},
		{8, 0xff},
	}
	for _, tt := range tc {
		if got := dataMask(tt.nbits); got != tt.want {
			t.Errorf("dataMask(%d): want %#02x; got %#02x", tt.nbits, tt.want, got)
		}
	}
}
