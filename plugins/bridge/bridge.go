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

// Package bridge deterministically derives the two per-agent bridge
// sub-subnets (CNI-style and container-runtime-style) from an agent's
// allocated overlay subnet.
package bridge

import (
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/go-errors/errors"
)

// ErrNoRoom is returned when the agent subnet has no spare bit to split,
// i.e. its prefix is already /32.
var ErrNoRoom = errors.New("bridge: agent subnet has no room to split")

// Pair is the two bridges derived from a single agent subnet: the
// low half (Mesos, "m-" prefixed) and the high half (Docker, "d-"
// prefixed) at prefix+1.
type Pair struct {
	Mesos  Bridge
	Docker Bridge
}

// Bridge names one of the two per-agent bridge sub-subnets.
type Bridge struct {
	Name    string
	Network *net.IPNet
}

// Derive splits agentSubnet into its low and high halves at
// agentSubnet's prefix + 1, naming them "m-"+overlayName and
// "d-"+overlayName. The two halves are disjoint and their union is
// exactly agentSubnet.
func Derive(overlayName string, agentSubnet *net.IPNet) (Pair, error) {
	ones, bits := agentSubnet.Mask.Size()
	if bits != 32 || ones >= 32 {
		return Pair{}, ErrNoRoom
	}

	lo, err := cidr.Subnet(agentSubnet, 1, 0)
	if err != nil {
		return Pair{}, err
	}
	hi, err := cidr.Subnet(agentSubnet, 1, 1)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		Mesos:  Bridge{Name: "m-" + overlayName, Network: lo},
		Docker: Bridge{Name: "d-" + overlayName, Network: hi},
	}, nil
}
