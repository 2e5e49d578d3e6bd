// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmio maps physical register windows into the process and
// provides barrier-guarded word access to them.
//
// A window is mapped at most once per process: Map returns the existing
// region when the same range is requested again, and Close unmaps only
// when the last reference is gone. The registry lock guards Map and
// Close; register access itself takes no lock, except for the documented
// read-modify-write helper.
package mmio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/yunkot/MicroPXL-sub002/hwio"
)

// Region is a mapped physical register window. All offsets are in
// 32-bit words from the start of the window; accesses outside it panic
// like any slice access.
type Region struct {
	device string
	phys   uint64
	mem    []byte
	words  []uint32
	refs   int // guarded by the registry lock

	// mu serializes read-modify-write cycles within the process. Plain
	// reads and writes stay lock-free: a 32-bit store to hardware is
	// indivisible on its own.
	mu sync.Mutex
}

type regionKey struct {
	device string
	phys   uint64
}

var (
	regmu   sync.Mutex
	regions = make(map[regionKey]*Region)
)

// Map maps length bytes of physical memory at phys from device, normally
// /dev/mem or /dev/gpiomem. phys must be page-aligned, as the kernel
// maps whole pages. Mapping a range that is already mapped returns the
// shared region with another reference on it; every caller closes its
// own reference.
func Map(device string, phys uint64, length int) (*Region, error) {
	res := fmt.Sprintf("%s+%#x", device, phys)
	if phys%uint64(os.Getpagesize()) != 0 {
		return nil, &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "mmio.map",
			Resource: res,
			Err:      errors.New("physical base is not page-aligned"),
		}
	}
	if length <= 0 || length%4 != 0 {
		return nil, &hwio.Error{
			Kind:     hwio.KindConfig,
			Op:       "mmio.map",
			Resource: res,
			Err:      fmt.Errorf("invalid window length %d", length),
		}
	}

	regmu.Lock()
	defer regmu.Unlock()

	k := regionKey{device, phys}
	if r, ok := regions[k]; ok {
		if length > len(r.mem) {
			return nil, &hwio.Error{
				Kind:     hwio.KindConfig,
				Op:       "mmio.map",
				Resource: res,
				Err:      fmt.Errorf("window already mapped with length %d", len(r.mem)),
			}
		}
		r.refs++
		return r, nil
	}

	f, err := os.OpenFile(device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, &hwio.Error{Kind: hwio.Classify(err), Op: "mmio.map", Resource: res, Err: err}
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), int64(phys), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &hwio.Error{Kind: hwio.Classify(err), Op: "mmio.map", Resource: res, Err: err}
	}

	r := &Region{
		device: device,
		phys:   phys,
		mem:    mem,
		words:  unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), length/4),
		refs:   1,
	}
	regions[k] = r
	return r, nil
}

// Read32 returns the word at off. The atomic load keeps the access
// ordered against every other access through the region, replacing the
// fence pair a plain load would need around device memory.
func (r *Region) Read32(off uint32) uint32 {
	return atomic.LoadUint32(&r.words[off])
}

// Write32 stores v at off, ordered like Read32.
func (r *Region) Write32(off uint32, v uint32) {
	atomic.StoreUint32(&r.words[off], v)
}

// RMW32 replaces the masked bits of the word at off with bits. The cycle
// holds the region lock so two goroutines cannot interleave their
// read-modify-write on the same window; it cannot protect against other
// processes sharing the hardware.
func (r *Region) RMW32(off, mask, bits uint32) {
	r.mu.Lock()
	v := atomic.LoadUint32(&r.words[off])
	atomic.StoreUint32(&r.words[off], v&^mask|bits&mask)
	r.mu.Unlock()
}

// Close releases the caller's reference and unmaps the window when it
// was the last one. Failures to unmap are logged, not returned; closing
// an already-closed region is a no-op.
func (r *Region) Close() error {
	regmu.Lock()
	defer regmu.Unlock()

	if r.refs == 0 {
		return nil
	}
	r.refs--
	if r.refs > 0 {
		return nil
	}
	delete(regions, regionKey{r.device, r.phys})
	mem := r.mem
	r.mem, r.words = nil, nil
	if err := unix.Munmap(mem); err != nil {
		hwio.Logger().Warn("mmio: unmap failed", "resource", r.String(), "err", err)
	}
	return nil
}

// Phys returns the physical base of the window.
func (r *Region) Phys() uint64 { return r.phys }

// Words returns the window size in 32-bit words, 0 once unmapped.
func (r *Region) Words() int { return len(r.words) }

func (r *Region) String() string {
	return fmt.Sprintf("%s+%#x", r.device, r.phys)
}
