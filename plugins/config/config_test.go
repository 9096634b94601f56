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

package config

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/kaysoky/dcos-mesos-modules/plugins/vtep"
)

func validDoc() *Document {
	return &Document{
		VTEPSubnet: "44.128.0.0/20",
		VTEPMACOUI: "70:B3:D5:00:00:00",
		Overlays: []OverlaySpec{
			{Name: "ovl", Subnet: "9.0.0.0/8", AgentPrefix: 24},
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	RegisterTestingT(t)

	cfg, err := Validate(validDoc())
	Expect(err).NotTo(HaveOccurred())
	Expect(cfg.VTEPSubnet.String()).To(Equal("44.128.0.0/20"))
	Expect(cfg.VTEPMACOUI).To(Equal(vtep.OUI{0x70, 0xB3, 0xD5}))
	Expect(cfg.Overlays).To(HaveLen(1))
	Expect(cfg.Overlays[0].VNI).To(Equal(uint32(1024)))
	Expect(cfg.Overlays[0].VTEPNamePrefix).To(Equal("vtep1024"))
}

func TestValidateRejectsEmptyOverlayList(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.Overlays = nil
	_, err := Validate(doc)
	Expect(err).To(Equal(ErrEmptyOverlayList))
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.Overlays = append(doc.Overlays, OverlaySpec{Name: "ovl", Subnet: "10.0.0.0/8", AgentPrefix: 24})
	_, err := Validate(doc)
	Expect(err).To(HaveOccurred())
}

// S5: overlapping overlays are rejected.
func TestValidateRejectsOverlappingOverlays(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.Overlays = []OverlaySpec{
		{Name: "A", Subnet: "10.0.0.0/16", AgentPrefix: 24},
		{Name: "B", Subnet: "10.0.128.0/17", AgentPrefix: 24},
	}
	_, err := Validate(doc)
	Expect(err).To(HaveOccurred())
}

func TestValidateAcceptsAdjacentNonOverlappingOverlays(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.Overlays = []OverlaySpec{
		{Name: "A", Subnet: "10.0.0.0/17", AgentPrefix: 24},
		{Name: "B", Subnet: "10.0.128.0/17", AgentPrefix: 24},
	}
	_, err := Validate(doc)
	Expect(err).NotTo(HaveOccurred())
}

// S6: OUI with non-zero low bytes is rejected.
func TestValidateRejectsBadOUI(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.VTEPMACOUI = "70:B3:D5:01:00:00"
	_, err := Validate(doc)
	Expect(err).To(HaveOccurred())
}

func TestValidateRejectsBadVTEPSubnet(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.VTEPSubnet = "not-a-cidr"
	_, err := Validate(doc)
	Expect(err).To(HaveOccurred())
}

func TestValidateRejectsAgentPrefixOutOfRange(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.Overlays[0].AgentPrefix = 32
	_, err := Validate(doc)
	Expect(err).To(HaveOccurred())
}

func TestValidateRejectsAgentPrefixBelowSupernet(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.Overlays[0].Subnet = "9.0.0.0/28"
	doc.Overlays[0].AgentPrefix = 24
	_, err := Validate(doc)
	Expect(err).To(HaveOccurred())
}

func TestValidateAllowsPerOverlayVNIOverride(t *testing.T) {
	RegisterTestingT(t)

	doc := validDoc()
	doc.Overlays[0].VNI = 2048
	doc.Overlays[0].VTEPNamePrefix = "vtep2048"
	cfg, err := Validate(doc)
	Expect(err).NotTo(HaveOccurred())
	Expect(cfg.Overlays[0].VNI).To(Equal(uint32(2048)))
	Expect(cfg.Overlays[0].VTEPNamePrefix).To(Equal("vtep2048"))
}
