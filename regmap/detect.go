// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regmap

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

// Detect identifies the board the process runs on. The device-tree model
// string is the primary source; the cpuinfo hardware and revision fields
// cover kernels without one, and the kernel command line identifies
// Edison images. Boards that match nothing fail with KindNotFound and
// are served by the generic backends.
func Detect() (Platform, error) {
	return detect("/proc")
}

func detect(proc string) (Platform, error) {
	if model, err := os.ReadFile(filepath.Join(proc, "device-tree", "model")); err == nil {
		if f := familyFromModel(string(model)); f != Unknown {
			return platformFor(f, proc), nil
		}
	}
	if b, err := os.ReadFile(filepath.Join(proc, "cpuinfo")); err == nil {
		if f := familyFromCPUInfo(b); f != Unknown {
			return platformFor(f, proc), nil
		}
	}
	if b, err := os.ReadFile(filepath.Join(proc, "cmdline")); err == nil {
		if f := familyFromCmdline(string(b)); f != Unknown {
			return platformFor(f, proc), nil
		}
	}
	return Platform{}, &hwio.Error{
		Kind:     hwio.KindNotFound,
		Op:       "regmap.detect",
		Resource: "host platform",
		Err:      errors.New("no supported SoC family recognized"),
	}
}

func platformFor(f Family, proc string) Platform {
	p := Platform{Family: f}
	switch f {
	case BCM2835, BCM2711:
		p.PeriphBase = defaultPeriphBase(f)
		if b, err := os.ReadFile(filepath.Join(proc, "device-tree", "soc", "ranges")); err == nil {
			if base, ok := parseRanges(b); ok {
				p.PeriphBase = base
			}
		}
	}
	return p
}

// familyFromModel matches the device-tree model string. Model files are
// NUL-terminated.
func familyFromModel(s string) Family {
	s = strings.TrimRight(s, "\x00\n")
	switch {
	// The Pi 5 moved GPIO off the SoC entirely; it is not a BCM283x
	// layout and must not be treated as one.
	case strings.Contains(s, "Raspberry Pi 5"):
		return Unknown
	case strings.Contains(s, "Raspberry Pi 4"),
		strings.Contains(s, "Raspberry Pi 400"),
		strings.Contains(s, "Compute Module 4"):
		return BCM2711
	case strings.Contains(s, "Raspberry Pi"):
		return BCM2835
	case strings.Contains(s, "AM335x"), strings.Contains(s, "BeagleBone"):
		return AM335x
	case strings.Contains(s, "Edison"):
		return Edison
	}
	return Unknown
}

// familyFromCPUInfo matches the Hardware and Revision fields. Raspberry
// Pi kernels report the same Hardware string across the whole line, so
// the revision code decides the family.
func familyFromCPUInfo(b []byte) Family {
	var hw string
	var rev uint64
	for _, line := range strings.Split(string(b), "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		switch k {
		case "Hardware":
			hw = v
		case "Revision":
			rev, _ = strconv.ParseUint(v, 16, 64)
		}
	}
	switch {
	case strings.Contains(hw, "AM33"):
		return AM335x
	case strings.HasPrefix(hw, "BCM2"):
		if rev != 0 {
			return familyFromRevision(rev)
		}
		return BCM2835
	}
	return Unknown
}

// familyFromRevision decodes a Raspberry Pi revision code. New-style
// codes carry the processor in bits 12-15; old-style codes all belong to
// the BCM2835 era.
func familyFromRevision(rev uint64) Family {
	if rev&(1<<23) == 0 {
		return BCM2835
	}
	switch rev >> 12 & 0xf {
	case 0, 1, 2: // BCM2835, BCM2836, BCM2837
		return BCM2835
	case 3:
		return BCM2711
	}
	return Unknown
}

// familyFromCmdline scans the kernel command line. Edison images boot
// with android parameters that name the hardware.
func familyFromCmdline(s string) Family {
	toks, err := shlex.Split(strings.TrimRight(s, "\x00\n"))
	if err != nil {
		return Unknown
	}
	for _, tok := range toks {
		if tok == "androidboot.hardware=edison" {
			return Edison
		}
	}
	return Unknown
}

// parseRanges extracts the peripheral window base from the soc node's
// ranges property. The parent address follows the 4-byte child address
// and is itself 4 bytes, or 8 on kernels that switched the soc node to
// 64-bit addressing.
func parseRanges(b []byte) (uint64, bool) {
	if len(b) >= 8 {
		if base := binary.BigEndian.Uint32(b[4:8]); base != 0 {
			return uint64(base), true
		}
	}
	if len(b) >= 12 {
		if base := binary.BigEndian.Uint32(b[8:12]); base != 0 {
			return uint64(base), true
		}
	}
	return 0, false
}

func defaultPeriphBase(f Family) uint64 {
	if f == BCM2711 {
		return 0xfe000000
	}
	return 0x20000000
}
