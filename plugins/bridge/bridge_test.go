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

package bridge

import (
	"net"
	"testing"

	. "github.com/onsi/gomega"
)

func network(cidr string) *net.IPNet {
	_, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return n
}

func TestDeriveSplitsIntoHalves(t *testing.T) {
	RegisterTestingT(t)

	pair, err := Derive("ovl", network("9.0.0.0/24"))
	Expect(err).NotTo(HaveOccurred())

	Expect(pair.Mesos.Name).To(Equal("m-ovl"))
	Expect(pair.Mesos.Network.String()).To(Equal("9.0.0.0/25"))

	Expect(pair.Docker.Name).To(Equal("d-ovl"))
	Expect(pair.Docker.Network.String()).To(Equal("9.0.0.128/25"))
}

func TestDeriveHalvesAreDisjointAndCoverParent(t *testing.T) {
	RegisterTestingT(t)

	pair, err := Derive("ovl", network("9.0.1.0/24"))
	Expect(err).NotTo(HaveOccurred())

	loOnes, _ := pair.Mesos.Network.Mask.Size()
	hiOnes, _ := pair.Docker.Network.Mask.Size()
	Expect(loOnes).To(Equal(25))
	Expect(hiOnes).To(Equal(25))
	Expect(pair.Mesos.Network.IP.Equal(net.ParseIP("9.0.1.0"))).To(BeTrue())
	Expect(pair.Docker.Network.IP.Equal(net.ParseIP("9.0.1.128"))).To(BeTrue())
}

func TestDeriveRejectsSlash32(t *testing.T) {
	RegisterTestingT(t)

	_, err := Derive("ovl", network("9.0.0.1/32"))
	Expect(err).To(Equal(ErrNoRoom))
}

func TestDeriveOddPrefixLength(t *testing.T) {
	RegisterTestingT(t)

	pair, err := Derive("ovl", network("172.30.4.0/23"))
	Expect(err).NotTo(HaveOccurred())
	Expect(pair.Mesos.Network.String()).To(Equal("172.30.4.0/24"))
	Expect(pair.Docker.Network.String()).To(Equal("172.30.5.0/24"))
}
