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

// Package ipaddr holds the handful of explicit, host-byte-order 32-bit
// integer conversions the allocators in this repository need. All
// address arithmetic in the allocation core is done on these plain
// uint32 values, never on net.IP byte slices directly.
package ipaddr

import (
	"encoding/binary"
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/pkg/errors"
)

// ToUint32 converts an IPv4 address to its 32-bit big-endian integer
// representation. It returns an error if ip is not a valid IPv4 address.
func ToUint32(ip net.IP) (uint32, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, errors.Errorf("%s is not an IPv4 address", ip)
	}
	return binary.BigEndian.Uint32(v4), nil
}

// FromUint32 converts a 32-bit big-endian integer back into an IPv4
// address.
func FromUint32(v uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}

// HostMask returns the host-bit mask for a network of the given prefix
// length, i.e. 2^(32-prefixLen)-1 (0 for /32).
func HostMask(prefixLen int) uint32 {
	if prefixLen >= 32 {
		return 0
	}
	return uint32(1)<<uint(32-prefixLen) - 1
}

// Offset returns the host-order integer offset of ip within network,
// along with an error if ip does not fall inside network.
func Offset(network *net.IPNet, ip net.IP) (uint32, error) {
	base, err := ToUint32(network.IP)
	if err != nil {
		return 0, err
	}
	addr, err := ToUint32(ip)
	if err != nil {
		return 0, err
	}
	ones, _ := network.Mask.Size()
	mask := HostMask(ones)
	if addr&^mask != base {
		return 0, errors.Errorf("%s does not lie within %s", ip, network)
	}
	return addr & mask, nil
}

// AtOffset returns the IPv4 address that is offset host bits into
// network.
func AtOffset(network *net.IPNet, offset uint32) (net.IP, error) {
	ones, _ := network.Mask.Size()
	if offset > HostMask(ones) {
		return nil, errors.Errorf("offset %d exceeds host space of %s", offset, network)
	}
	ip, err := cidr.Host(network, int(offset))
	if err != nil {
		return nil, err
	}
	return ip.To4(), nil
}

// AddressRange returns the first and last host-order addresses covered
// by network, inclusive.
func AddressRange(network *net.IPNet) (lo, hi uint32, err error) {
	first, last := cidr.AddressRange(network)
	lo, err = ToUint32(first)
	if err != nil {
		return 0, 0, err
	}
	hi, err = ToUint32(last)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// WithPrefix builds a *net.IPNet for ip masked to the given prefix
// length.
func WithPrefix(ip net.IP, prefixLen int) *net.IPNet {
	mask := net.CIDRMask(prefixLen, 32)
	return &net.IPNet{IP: ip.To4().Mask(mask), Mask: mask}
}
