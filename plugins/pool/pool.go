// Copyright (c) 2018 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pool implements a set of free uint32 values represented as a
// union of disjoint, sorted, closed intervals. It is the low-level
// allocator on top of which VTEP IP/MAC pools and per-overlay subnet
// pools are built.
package pool

import (
	"sort"

	"github.com/go-errors/errors"
)

// ErrEmpty is returned by Allocate when the pool has no free values left.
var ErrEmpty = errors.New("pool: no free value available")

// interval is a closed range [Lo, Hi] of free values, Lo <= Hi.
type interval struct {
	Lo, Hi uint32
}

// Pool is a set of free uint32 values, stored as a sorted slice of
// disjoint, coalesced intervals. The zero value is not usable; construct
// one with New.
type Pool struct {
	free []interval
}

// New creates a Pool whose initial free set is the closed interval
// [lo, hi]. Callers on the address/MAC side are expected to have already
// excluded any reserved values (e.g. the lowest and highest host offsets,
// NIC suffix 0) from lo/hi.
func New(lo, hi uint32) *Pool {
	if hi < lo {
		return &Pool{}
	}
	return &Pool{free: []interval{{Lo: lo, Hi: hi}}}
}

// Empty reports whether the pool has no free values left.
func (p *Pool) Empty() bool {
	return len(p.free) == 0
}

// Allocate returns the lowest currently free value and removes it from
// the pool. Allocation order is deterministic: the lowest free integer
// is always returned first.
func (p *Pool) Allocate() (uint32, error) {
	if p.Empty() {
		return 0, ErrEmpty
	}
	iv := &p.free[0]
	v := iv.Lo
	if iv.Lo == iv.Hi {
		p.free = p.free[1:]
	} else {
		iv.Lo++
	}
	return v, nil
}

// Deallocate returns v to the pool, merging it with any adjacent
// interval. Deallocating a value that is already free is tolerated as a
// no-op rather than treated as an error.
func (p *Pool) Deallocate(v uint32) {
	i := sort.Search(len(p.free), func(i int) bool {
		return p.free[i].Lo > v
	})

	// i is the index of the first interval starting after v; the
	// interval that could already contain v, if any, is i-1.
	if i > 0 && p.free[i-1].Hi >= v {
		// v already free.
		return
	}

	mergeLeft := i > 0 && p.free[i-1].Hi == v-1
	mergeRight := i < len(p.free) && v != ^uint32(0) && p.free[i].Lo == v+1

	switch {
	case mergeLeft && mergeRight:
		p.free[i-1].Hi = p.free[i].Hi
		p.free = append(p.free[:i], p.free[i+1:]...)
	case mergeLeft:
		p.free[i-1].Hi = v
	case mergeRight:
		p.free[i].Lo = v
	default:
		p.free = append(p.free, interval{})
		copy(p.free[i+1:], p.free[i:])
		p.free[i] = interval{Lo: v, Hi: v}
	}
}

// ContainsInitial reports whether v currently lies within the pool's
// free set. Exported only for tests.
func (p *Pool) ContainsInitial(v uint32) bool {
	i := sort.Search(len(p.free), func(i int) bool {
		return p.free[i].Hi >= v
	})
	return i < len(p.free) && p.free[i].Lo <= v
}
