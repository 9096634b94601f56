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

package master

import (
	"net"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/kaysoky/dcos-mesos-modules/plugins/config"
	"github.com/kaysoky/dcos-mesos-modules/plugins/registry"
)

func testConfig() *config.Config {
	_, vtepNet, _ := net.ParseCIDR("44.128.0.0/20")
	_, ovlNet, _ := net.ParseCIDR("9.0.0.0/8")
	return &config.Config{
		VTEPSubnet: vtepNet,
		VTEPMACOUI: [3]byte{0x70, 0xB3, 0xD5},
		Overlays: []config.OverlayConfig{
			{Name: "ovl", Supernet: ovlNet, AgentPrefix: 24, VNI: 1024, VTEPNamePrefix: "vtep1024"},
		},
	}
}

func TestRegisterAndSnapshot(t *testing.T) {
	RegisterTestingT(t)

	m, err := New(logrus.NewEntry(logrus.New()), testConfig(), nil)
	Expect(err).NotTo(HaveOccurred())
	defer m.Close()

	records, err := m.Register("a1@10.0.0.1:5051")
	Expect(err).NotTo(HaveOccurred())
	Expect(records).To(HaveLen(1))
	Expect(records[0].AgentSubnet).To(Equal("9.0.0.0/24"))

	snap, err := m.Snapshot()
	Expect(err).NotTo(HaveOccurred())
	Expect(snap.Overlays).To(HaveLen(1))
	Expect(snap.Agents).To(HaveLen(1))
	Expect(snap.Agents[0].ID).To(Equal("a1@10.0.0.1:5051"))
}

func TestAgentRegisteredAcknowledgesThroughActor(t *testing.T) {
	RegisterTestingT(t)

	m, err := New(logrus.NewEntry(logrus.New()), testConfig(), nil)
	Expect(err).NotTo(HaveOccurred())
	defer m.Close()

	records, err := m.Register("a1@10.0.0.1:5051")
	Expect(err).NotTo(HaveOccurred())
	records[0].Status = registry.StatusRegistered

	ok, err := m.AgentRegistered("a1@10.0.0.1:5051", records)
	Expect(err).NotTo(HaveOccurred())
	Expect(ok).To(BeTrue())

	snap, err := m.Snapshot()
	Expect(err).NotTo(HaveOccurred())
	Expect(snap.Agents[0].Records[0].Status).To(Equal(registry.StatusRegistered))
}

func TestPushEventAfterCloseReturnsErrClosed(t *testing.T) {
	RegisterTestingT(t)

	m, err := New(logrus.NewEntry(logrus.New()), testConfig(), nil)
	Expect(err).NotTo(HaveOccurred())
	m.Close()

	_, err = m.Register("a1@10.0.0.1:5051")
	Expect(err).To(Equal(ErrClosed))
}
