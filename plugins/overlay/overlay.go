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

// Package overlay carves per-agent subnets out of a configured overlay
// supernet.
package overlay

import (
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/go-errors/errors"

	"github.com/kaysoky/dcos-mesos-modules/plugins/ipaddr"
	"github.com/kaysoky/dcos-mesos-modules/plugins/pool"
)

// ErrExhausted is returned when an overlay has no more agent subnets to
// hand out.
var ErrExhausted = errors.New("overlay: subnet pool exhausted")

// ErrPrefixMismatch is returned when a subnet's prefix does not match
// the overlay's configured agent prefix.
var ErrPrefixMismatch = errors.New("overlay: prefix mismatch")

// ErrOutOfRange is returned when a subnet does not lie within the
// overlay's supernet.
var ErrOutOfRange = errors.New("overlay: subnet out of range")

// Pool carves agent-sized subnets (fixed prefix length AgentPrefix) out
// of Supernet. Every allocated subnet is representable as
// supernet-address | (k << (32 - AgentPrefix)) for some 0 <= k <
// 2^(AgentPrefix-SupernetPrefix).
type Pool struct {
	Name        string
	Supernet    *net.IPNet
	AgentPrefix int

	free *pool.Pool
}

// New builds a Pool for the given overlay name, supernet and agent
// prefix length. New rejects an agentPrefix outside
// [supernetPrefix, 32]; ConfigValidator additionally caps it at 31.
func New(name string, supernet *net.IPNet, agentPrefix int) (*Pool, error) {
	supernetPrefix, _ := supernet.Mask.Size()
	if agentPrefix < supernetPrefix || agentPrefix > 32 {
		return nil, errors.Errorf("overlay %q: agent prefix /%d out of range for supernet %s", name, agentPrefix, supernet)
	}
	maxK := uint32(0)
	if agentPrefix > supernetPrefix {
		maxK = uint32(1)<<uint(agentPrefix-supernetPrefix) - 1
	}
	return &Pool{
		Name:        name,
		Supernet:    supernet,
		AgentPrefix: agentPrefix,
		free:        pool.New(0, maxK),
	}, nil
}

// hostShift is the number of host bits carried by a single unit of the
// pool's index k: agent subnets are spaced k << hostShift apart.
func (p *Pool) hostShift() uint {
	return uint(32 - p.AgentPrefix)
}

// AllocateAgentSubnet allocates the lowest-numbered free agent subnet.
func (p *Pool) AllocateAgentSubnet() (*net.IPNet, error) {
	k, err := p.free.Allocate()
	if err != nil {
		return nil, ErrExhausted
	}
	supernetPrefix, _ := p.Supernet.Mask.Size()
	subnet, err := cidr.Subnet(p.Supernet, p.AgentPrefix-supernetPrefix, int(k))
	if err != nil {
		p.free.Deallocate(k)
		return nil, err
	}
	return subnet, nil
}

// DeallocateAgentSubnet returns subnet to the free pool.
func (p *Pool) DeallocateAgentSubnet(subnet *net.IPNet) error {
	ones, bits := subnet.Mask.Size()
	if bits != 32 || ones != p.AgentPrefix {
		return ErrPrefixMismatch
	}
	offset, err := ipaddr.Offset(p.Supernet, subnet.IP)
	if err != nil {
		return ErrOutOfRange
	}
	if offset&(uint32(1)<<p.hostShift()-1) != 0 {
		return ErrOutOfRange
	}
	p.free.Deallocate(offset >> p.hostShift())
	return nil
}

// Empty reports whether the overlay has no free subnets left.
func (p *Pool) Empty() bool {
	return p.free.Empty()
}

// AddressRange returns the inclusive [lo, hi] host-order integer
// interval spanned by the overlay's supernet, used by ConfigValidator to
// detect cross-overlay overlap.
func AddressRange(supernet *net.IPNet) (lo, hi uint32, err error) {
	return ipaddr.AddressRange(supernet)
}
