// Copyright 2023 The MicroPXL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pinclaim tracks exclusive ownership of pins and other
// single-holder resources within the process.
//
// Backends claim a pin before configuring it and release it when they
// close. The registry is the one place pin ownership crosses backend
// boundaries, so a pin held through sysfs cannot also be grabbed through
// the register-mapped backend.
package pinclaim

import (
	"fmt"
	"sync"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Registry records which resources are claimed and by whom. It is safe
// for concurrent use; claims are atomic, so of two goroutines racing to
// configure the same pin exactly one succeeds.
type Registry[K constraints.Ordered] struct {
	mu   sync.Mutex
	held map[K]string
}

// New returns an empty registry.
func New[K constraints.Ordered]() *Registry[K] {
	return &Registry[K]{held: make(map[K]string)}
}

// Claim records k as held by owner. Claiming a resource that is already
// held fails and names the current holder.
func (r *Registry[K]) Claim(k K, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.held[k]; ok {
		return fmt.Errorf("%v already in use by %s", k, cur)
	}
	r.held[k] = owner
	return nil
}

// Release drops the claim on k. Releasing an unclaimed resource is a
// no-op.
func (r *Registry[K]) Release(k K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, k)
}

// ReleaseOwner drops every claim held by owner and returns the released
// resources in ascending order.
func (r *Registry[K]) ReleaseOwner(owner string) []K {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ks []K
	for k, o := range r.held {
		if o == owner {
			ks = append(ks, k)
		}
	}
	for _, k := range ks {
		delete(r.held, k)
	}
	slices.Sort(ks)
	return ks
}

// Holder returns the owner of k.
func (r *Registry[K]) Holder(k K) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.held[k]
	return o, ok
}

// Held returns the claimed resources in ascending order.
func (r *Registry[K]) Held() []K {
	r.mu.Lock()
	defer r.mu.Unlock()
	ks := maps.Keys(r.held)
	slices.Sort(ks)
	return ks
}

// Pins is the process-wide registry of GPIO pins. Every pin backend
// claims through it.
var Pins = New[int]()
