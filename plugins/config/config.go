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

// Package config loads and validates the startup configuration document:
// the VTEP subnet, the VTEP MAC OUI, and the list of overlays.
package config

import (
	"io/ioutil"
	"net"
	"sort"

	"github.com/ghodss/yaml"
	goerrors "github.com/go-errors/errors"
	"github.com/pkg/errors"

	"github.com/kaysoky/dcos-mesos-modules/plugins/overlay"
	"github.com/kaysoky/dcos-mesos-modules/plugins/vtep"
)

// ErrEmptyOverlayList is returned when the configuration has no overlays.
var ErrEmptyOverlayList = goerrors.New("config: overlay list is empty")

// ErrDuplicateOverlayName is returned when two overlays share a name.
var ErrDuplicateOverlayName = goerrors.New("config: duplicate overlay name")

// ErrOverlappingOverlays is returned when two overlays' host address
// ranges intersect.
var ErrOverlappingOverlays = goerrors.New("config: overlapping overlay address spaces")

// ErrBadOUI is returned when the VTEP MAC OUI has non-zero low bytes.
var ErrBadOUI = goerrors.New("config: vtep_mac_oui low three bytes must be zero")

// ErrBadAgentPrefix is returned when an overlay's agent prefix is out of
// [supernet.prefix, 31].
var ErrBadAgentPrefix = goerrors.New("config: agent_prefix out of range")

// OverlaySpec is one entry of the overlays list in the configuration
// document.
type OverlaySpec struct {
	Name        string `json:"name"`
	Subnet      string `json:"subnet"`
	AgentPrefix int    `json:"prefix"`

	// VNI and VTEPNamePrefix override the hard-coded defaults (1024,
	// "vtep1024") for this overlay's VXLAN backend, matching the
	// original master's per-overlay configurability.
	VNI            uint32 `json:"vni,omitempty"`
	VTEPNamePrefix string `json:"vtep_name_prefix,omitempty"`
}

// Document is the raw, unvalidated startup configuration as decoded from
// YAML or JSON.
type Document struct {
	VTEPSubnet string        `json:"vtep_subnet"`
	VTEPMACOUI string        `json:"vtep_mac_oui"`
	Overlays   []OverlaySpec `json:"overlays"`
}

// Load reads and YAML-decodes a Document from path.
func Load(path string) (*Document, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %q", path)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %q", path)
	}
	return &doc, nil
}

// OverlayConfig is one validated overlay: its parsed supernet and agent
// prefix, plus the VXLAN backend defaults it should use.
type OverlayConfig struct {
	Name           string
	Supernet       *net.IPNet
	AgentPrefix    int
	VNI            uint32
	VTEPNamePrefix string
}

// Config is the fully validated, parsed startup configuration.
type Config struct {
	VTEPSubnet *net.IPNet
	VTEPMACOUI vtep.OUI
	Overlays   []OverlayConfig
}

const (
	defaultVNI            = 1024
	defaultVTEPNamePrefix = "vtep1024"
)

// Validate parses and validates doc, returning a Config or the first
// ConfigError encountered.
func Validate(doc *Document) (*Config, error) {
	vtepSubnet, err := parseCIDR(doc.VTEPSubnet)
	if err != nil {
		return nil, errors.Wrap(err, "parsing vtep_subnet")
	}

	oui, err := parseOUI(doc.VTEPMACOUI)
	if err != nil {
		return nil, err
	}

	if len(doc.Overlays) == 0 {
		return nil, ErrEmptyOverlayList
	}

	names := make(map[string]bool, len(doc.Overlays))
	type ivl struct{ lo, hi uint32 }
	var ranges []ivl

	overlays := make([]OverlayConfig, 0, len(doc.Overlays))
	for _, spec := range doc.Overlays {
		if names[spec.Name] {
			return nil, errors.Wrapf(ErrDuplicateOverlayName, "%q", spec.Name)
		}
		names[spec.Name] = true

		supernet, err := parseCIDR(spec.Subnet)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing overlay %q subnet", spec.Name)
		}

		supernetPrefix, _ := supernet.Mask.Size()
		if spec.AgentPrefix < supernetPrefix || spec.AgentPrefix > 31 {
			return nil, errors.Wrapf(ErrBadAgentPrefix, "overlay %q: prefix /%d", spec.Name, spec.AgentPrefix)
		}

		lo, hi, err := overlay.AddressRange(supernet)
		if err != nil {
			return nil, errors.Wrapf(err, "computing address range for overlay %q", spec.Name)
		}
		for _, r := range ranges {
			if lo <= r.hi && r.lo <= hi {
				return nil, errors.Wrapf(ErrOverlappingOverlays, "overlay %q", spec.Name)
			}
		}
		ranges = append(ranges, ivl{lo, hi})

		vni := uint32(defaultVNI)
		if spec.VNI != 0 {
			vni = spec.VNI
		}
		namePrefix := defaultVTEPNamePrefix
		if spec.VTEPNamePrefix != "" {
			namePrefix = spec.VTEPNamePrefix
		}

		overlays = append(overlays, OverlayConfig{
			Name:           spec.Name,
			Supernet:       supernet,
			AgentPrefix:    spec.AgentPrefix,
			VNI:            vni,
			VTEPNamePrefix: namePrefix,
		})
	}

	sort.Slice(overlays, func(i, j int) bool { return overlays[i].Name < overlays[j].Name })

	return &Config{
		VTEPSubnet: vtepSubnet,
		VTEPMACOUI: oui,
		Overlays:   overlays,
	}, nil
}

func parseCIDR(s string) (*net.IPNet, error) {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		return nil, errors.Wrapf(err, "%q is not a valid CIDR", s)
	}
	return n, nil
}

func parseOUI(s string) (vtep.OUI, error) {
	mac, err := net.ParseMAC(s)
	if err != nil || len(mac) != 6 {
		return vtep.OUI{}, errors.Wrapf(ErrBadOUI, "%q is not a MAC address", s)
	}
	if mac[3] != 0 || mac[4] != 0 || mac[5] != 0 {
		return vtep.OUI{}, errors.Wrapf(ErrBadOUI, "%q", s)
	}
	return vtep.OUI{mac[0], mac[1], mac[2]}, nil
}
