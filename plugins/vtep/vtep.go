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

// Package vtep allocates the (IP, MAC) pair that identifies an agent's
// VXLAN tunnel endpoint on the overlay fabric.
package vtep

import (
	"net"

	"github.com/go-errors/errors"

	"github.com/kaysoky/dcos-mesos-modules/plugins/ipaddr"
	"github.com/kaysoky/dcos-mesos-modules/plugins/pool"
)

// ErrExhausted is returned when a pool has no more free IPs or MACs.
var ErrExhausted = errors.New("vtep: pool exhausted")

// ErrPrefixMismatch is returned by DeallocateIP when the network's prefix
// does not match the allocator's configured VTEP subnet prefix.
var ErrPrefixMismatch = errors.New("vtep: prefix mismatch")

// ErrUnknownOUI is returned by DeallocateMAC when the MAC's top three
// bytes do not match the configured OUI.
var ErrUnknownOUI = errors.New("vtep: unknown OUI")

// OUI is the 24-bit organizationally unique prefix of every MAC handed
// out by an Allocator.
type OUI [3]byte

// Allocator hands out VTEP IPv4 addresses drawn from a dedicated subnet,
// and VTEP MAC addresses built from a configured OUI plus an allocated
// 24-bit NIC suffix.
type Allocator struct {
	network *net.IPNet
	oui     OUI

	freeIP  *pool.Pool
	freeMAC *pool.Pool
}

// New builds an Allocator over the given VTEP subnet and OUI. The IP
// pool excludes host offset 0 (network address) and the top offset
// (broadcast-shaped address). The MAC pool excludes NIC suffix 0 and
// 0xFFFFFF for the same reason.
func New(network *net.IPNet, oui OUI) *Allocator {
	ones, _ := network.Mask.Size()
	maxHost := ipaddr.HostMask(ones)

	return &Allocator{
		network: network,
		oui:     oui,
		freeIP:  pool.New(1, maxHost-1),
		freeMAC: pool.New(1, 1<<24-2),
	}
}

// Network returns the configured VTEP subnet.
func (a *Allocator) Network() *net.IPNet {
	return a.network
}

// AllocateIP allocates the lowest free VTEP IP and returns it together
// with the VTEP subnet's prefix length.
func (a *Allocator) AllocateIP() (*net.IPNet, error) {
	k, err := a.freeIP.Allocate()
	if err != nil {
		return nil, ErrExhausted
	}
	ip, err := ipaddr.AtOffset(a.network, k)
	if err != nil {
		// unreachable: k was drawn from a pool sized to the subnet.
		a.freeIP.Deallocate(k)
		return nil, err
	}
	ones, _ := a.network.Mask.Size()
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(ones, 32)}, nil
}

// DeallocateIP returns net to the free IP pool.
func (a *Allocator) DeallocateIP(n *net.IPNet) error {
	wantOnes, _ := a.network.Mask.Size()
	gotOnes, gotBits := n.Mask.Size()
	if gotBits != 32 || gotOnes != wantOnes {
		return ErrPrefixMismatch
	}
	k, err := ipaddr.Offset(a.network, n.IP)
	if err != nil {
		return ErrPrefixMismatch
	}
	a.freeIP.Deallocate(k)
	return nil
}

// AllocateMAC allocates the lowest free NIC suffix and returns the full
// MAC address oui[0]:oui[1]:oui[2]:suffix[2]:suffix[1]:suffix[0], the
// big-endian encoding of the 24-bit suffix.
func (a *Allocator) AllocateMAC() (net.HardwareAddr, error) {
	n, err := a.freeMAC.Allocate()
	if err != nil {
		return nil, ErrExhausted
	}
	return net.HardwareAddr{
		a.oui[0], a.oui[1], a.oui[2],
		byte(n >> 16), byte(n >> 8), byte(n),
	}, nil
}

// DeallocateMAC returns mac's NIC suffix to the free MAC pool.
func (a *Allocator) DeallocateMAC(mac net.HardwareAddr) error {
	if len(mac) != 6 || mac[0] != a.oui[0] || mac[1] != a.oui[1] || mac[2] != a.oui[2] {
		return ErrUnknownOUI
	}
	n := uint32(mac[3])<<16 | uint32(mac[4])<<8 | uint32(mac[5])
	a.freeMAC.Deallocate(n)
	return nil
}
