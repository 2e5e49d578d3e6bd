// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package softuart

import (
	"math/bits"

	"github.com/yunkot/MicroPXL-sub002/hwio"
	"github.com/yunkot/MicroPXL-sub002/uart"
)

// dataMask keeps only the bits that belong to a frame's data word.
func dataMask(nbits int) byte {
	return byte(1<<nbits - 1)
}

// parityLevel returns the level of the parity bit for a data word. Even
// parity makes the total count of set bits even, odd parity makes it
// odd; a frame without parity has no such bit.
func parityLevel(b byte, nbits int, p uart.Parity) (hwio.Level, bool) {
	ones := bits.OnesCount8(b & dataMask(nbits))
	switch p {
	case uart.ParityEven:
		return hwio.Level(ones%2 == 1), true
	case uart.ParityOdd:
		return hwio.Level(ones%2 == 0), true
	}
	return hwio.Low, false
}
