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

package registry

import (
	"net"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/kaysoky/dcos-mesos-modules/plugins/overlay"
	"github.com/kaysoky/dcos-mesos-modules/plugins/vtep"
)

func network(cidr string) *net.IPNet {
	_, n, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return n
}

func newMachine(t *testing.T) (*Machine, *Registry) {
	ovl, err := overlay.New("ovl", network("9.0.0.0/8"), 24)
	if err != nil {
		t.Fatal(err)
	}
	vteps := vtep.New(network("44.128.0.0/20"), vtep.OUI{0x70, 0xB3, 0xD5})
	reg := New()
	meta := map[string]OverlayMeta{"ovl": {VNI: 1024, VTEPNamePrefix: "vtep1024"}}
	log := logrus.NewEntry(logrus.New())
	return NewMachine(log, []*overlay.Pool{ovl}, meta, vteps, reg), reg
}

// S1: single overlay, first agent.
func TestRegisterFirstAgent(t *testing.T) {
	RegisterTestingT(t)

	m, _ := newMachine(t)
	records := m.Register("a1@10.0.0.1:5051")
	Expect(records).To(HaveLen(1))

	rec := records[0]
	Expect(rec.AgentSubnet).To(Equal("9.0.0.0/24"))
	Expect(rec.MesosBridge.IP).To(Equal("9.0.0.0/25"))
	Expect(rec.DockerBridge.IP).To(Equal("9.0.0.128/25"))
	Expect(rec.Backend.VTEPIP).To(Equal("44.128.0.1/20"))
	Expect(rec.Backend.VTEPMAC).To(Equal("70:b3:d5:00:00:01"))
	Expect(rec.Backend.VNI).To(Equal(uint32(1024)))
	Expect(rec.Status).To(Equal(StatusRegistering))
}

// S2: second agent gets the next subnet.
func TestRegisterSecondAgentGetsNextSubnet(t *testing.T) {
	RegisterTestingT(t)

	m, _ := newMachine(t)
	m.Register("a1@10.0.0.1:5051")
	records := m.Register("a2@10.0.0.2:5051")

	rec := records[0]
	Expect(rec.AgentSubnet).To(Equal("9.0.1.0/24"))
	Expect(rec.Backend.VTEPIP).To(Equal("44.128.0.2/20"))
	Expect(rec.Backend.VTEPMAC).To(Equal("70:b3:d5:00:00:02"))
}

// S3: acknowledgement flips status to REGISTERED.
func TestAgentRegisteredAcknowledges(t *testing.T) {
	RegisterTestingT(t)

	m, reg := newMachine(t)
	records := m.Register("a1@10.0.0.1:5051")
	records[0].Status = StatusRegistered

	ok := m.AgentRegistered("a1@10.0.0.1:5051", records)
	Expect(ok).To(BeTrue())

	agent, exists := reg.Get("a1@10.0.0.1:5051")
	Expect(exists).To(BeTrue())
	Expect(agent.Records["ovl"].Status).To(Equal(StatusRegistered))
}

func TestAgentRegisteredFromUnknownAgentIsDropped(t *testing.T) {
	RegisterTestingT(t)

	m, _ := newMachine(t)
	ok := m.AgentRegistered("ghost@1.2.3.4:5051", nil)
	Expect(ok).To(BeFalse())
}

// S4: re-registration resets status without reallocating.
func TestReRegistrationResetsStatusOnly(t *testing.T) {
	RegisterTestingT(t)

	m, _ := newMachine(t)
	first := m.Register("a1@10.0.0.1:5051")
	first[0].Status = StatusRegistered
	m.AgentRegistered("a1@10.0.0.1:5051", first)

	second := m.Register("a1@10.0.0.1:5051")
	Expect(second).To(HaveLen(1))
	Expect(second[0].Status).To(Equal(StatusRegistering))
	Expect(RecordsEqual(second[0], first[0])).To(BeTrue())
}

func TestRegisterSkipsExhaustedOverlay(t *testing.T) {
	RegisterTestingT(t)

	ovl, err := overlay.New("ovl", network("10.0.0.0/31"), 31)
	Expect(err).NotTo(HaveOccurred())
	vteps := vtep.New(network("44.128.0.0/20"), vtep.OUI{0x70, 0xB3, 0xD5})
	reg := New()
	meta := map[string]OverlayMeta{"ovl": {VNI: 1024, VTEPNamePrefix: "vtep1024"}}
	m := NewMachine(logrus.NewEntry(logrus.New()), []*overlay.Pool{ovl}, meta, vteps, reg)

	m.Register("a1@10.0.0.1:5051")
	records := m.Register("a2@10.0.0.2:5051")
	Expect(records).To(BeEmpty())
}
