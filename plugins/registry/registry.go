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

// Package registry holds the per-agent, per-overlay allocation records
// and the registration state machine that drives them.
package registry

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
	"github.com/sirupsen/logrus"

	"github.com/kaysoky/dcos-mesos-modules/plugins/bridge"
	"github.com/kaysoky/dcos-mesos-modules/plugins/overlay"
	"github.com/kaysoky/dcos-mesos-modules/plugins/vtep"
)

// Status is a per-overlay agent registration state.
type Status string

const (
	// StatusRegistering means UpdateAgentOverlays was sent but the
	// agent has not yet acknowledged it via AgentRegistered.
	StatusRegistering Status = "REGISTERING"
	// StatusRegistered means the agent has acknowledged the overlay.
	StatusRegistered Status = "REGISTERED"
)

// VXLANBackend is the tunnel configuration handed to an agent for one
// overlay.
type VXLANBackend struct {
	VNI      uint32
	VTEPName string
	VTEPIP   string
	VTEPMAC  string
}

// AgentOverlayRecord is the full allocation record for one agent within
// one overlay. It implements proto.Message purely as a typing
// discipline, the same way other wire-shaped structs in this codebase
// do; encoding on the wire is still JSON.
type AgentOverlayRecord struct {
	OverlayName    string
	OverlaySubnet  string
	AgentPrefix    int32 // int32, not int: proto.Clone/proto.Equal skip plain int fields
	AgentSubnet    string
	MesosBridge    BridgeInfo
	DockerBridge   BridgeInfo
	Backend        VXLANBackend
	Status         Status
}

// BridgeInfo names one of an agent's two per-overlay bridges.
type BridgeInfo struct {
	Name string
	IP   string
}

// Reset implements proto.Message.
func (r *AgentOverlayRecord) Reset() { *r = AgentOverlayRecord{} }

// String implements proto.Message.
func (r *AgentOverlayRecord) String() string { return fmt.Sprintf("%+v", *r) }

// ProtoMessage implements proto.Message.
func (r *AgentOverlayRecord) ProtoMessage() {}

// Clone returns a deep copy of r, so a caller (StateEndpoint, a
// transport handler) never receives an alias into the actor's live
// state.
func (r *AgentOverlayRecord) Clone() *AgentOverlayRecord {
	return proto.Clone(r).(*AgentOverlayRecord)
}

// RecordsEqual reports whether two records are identical in every field
// except Status, i.e. identical modulo a state reset.
func RecordsEqual(a, b *AgentOverlayRecord) bool {
	ac, bc := a.Clone(), b.Clone()
	ac.Status, bc.Status = "", ""
	return proto.Equal(ac, bc)
}

// Agent is one entry in the AgentRegistry: an endpoint identity plus its
// per-overlay allocation records. The agent's shared VTEP IP/MAC are
// carried redundantly inside each record's Backend field, exactly as
// the wire protocol shapes them.
type Agent struct {
	ID      string
	Records map[string]*AgentOverlayRecord
}

// Registry is a mapping from agent identity to Agent. Entries are only
// ever inserted; there is no removal in this design.
type Registry struct {
	agents map[string]*Agent
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Get returns the Agent for id, if any.
func (r *Registry) Get(id string) (*Agent, bool) {
	a, ok := r.agents[id]
	return a, ok
}

// Put inserts or replaces the Agent for id.
func (r *Registry) Put(id string, a *Agent) {
	r.agents[id] = a
}

// All returns every registered agent, keyed by id. Callers must treat
// the returned map and its Agent values as read-only; use Clone on
// individual records before handing them further out.
func (r *Registry) All() map[string]*Agent {
	return r.agents
}

// Metrics receives counts of pool exhaustion (which the state machine
// treats as a non-fatal error) and of re-registrations. A nil Metrics is
// fine; Machine skips the calls.
type Metrics interface {
	IncPoolExhaustion(pool string)
	IncReRegistration()
}

// Machine drives the two-message agent registration protocol against a
// set of configured overlays, a VtepAllocator, and a Registry. It has no
// internal locking: callers are expected to invoke it only from the
// single actor goroutine that owns all of this state (plugins/master).
type Machine struct {
	log      *logrus.Entry
	overlays []*overlay.Pool
	vteps    *vtep.Allocator
	registry *Registry
	metrics  Metrics

	overlayMeta map[string]OverlayMeta
}

// OverlayMeta carries the VXLAN VNI and VTEP name prefix an overlay's
// records should be stamped with; both default to the hard-coded
// 1024/"vtep1024" pair but may be overridden per overlay in
// configuration.
type OverlayMeta struct {
	VNI            uint32
	VTEPNamePrefix string
}

// NewMachine builds a Machine over the given overlays (iterated in the
// order supplied, satisfying the "deterministic iteration order"
// requirement) and VTEP allocator.
func NewMachine(log *logrus.Entry, overlays []*overlay.Pool, meta map[string]OverlayMeta, vteps *vtep.Allocator, reg *Registry) *Machine {
	return &Machine{
		log:         log,
		overlays:    overlays,
		vteps:       vteps,
		registry:    reg,
		overlayMeta: meta,
	}
}

// SetMetrics attaches m as the destination for exhaustion and
// re-registration counts. Passing nil disables reporting.
func (m *Machine) SetMetrics(metrics Metrics) {
	m.metrics = metrics
}

// Register handles an inbound Register(a) message, returning the set of
// AgentOverlayRecord to send back in UpdateAgentOverlays. It allocates
// fresh state for a new agent, or resets status to REGISTERING for an
// already-registered one without reallocating anything.
func (m *Machine) Register(agentID string) []*AgentOverlayRecord {
	agent, exists := m.registry.Get(agentID)
	if !exists {
		agent = &Agent{ID: agentID, Records: make(map[string]*AgentOverlayRecord)}
		m.registry.Put(agentID, agent)
		m.allocate(agent)
	} else {
		if m.metrics != nil {
			m.metrics.IncReRegistration()
		}
		for _, rec := range agent.Records {
			rec.Status = StatusRegistering
		}
	}

	out := make([]*AgentOverlayRecord, 0, len(agent.Records))
	for _, o := range m.overlays {
		if rec, ok := agent.Records[o.Name]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func (m *Machine) reportExhaustion(pool string) {
	if m.metrics != nil {
		m.metrics.IncPoolExhaustion(pool)
	}
}

// allocate performs the first-time allocation for a newly registered
// agent: one VTEP IP, one VTEP MAC, and one agent subnet + bridge pair
// per overlay. Exhaustion of any single overlay's pool is logged and
// that overlay is skipped for this agent; the caller still gets whatever
// allocations succeeded for the others.
func (m *Machine) allocate(agent *Agent) {
	var vtepIP, vtepMAC string
	if ip, err := m.vteps.AllocateIP(); err != nil {
		m.log.WithField("agent", agent.ID).WithError(err).Warn("vtep IP pool exhausted")
		m.reportExhaustion("vtep_ip")
	} else {
		vtepIP = ip.String()
	}
	if mac, err := m.vteps.AllocateMAC(); err != nil {
		m.log.WithField("agent", agent.ID).WithError(err).Warn("vtep MAC pool exhausted")
		m.reportExhaustion("vtep_mac")
	} else {
		vtepMAC = mac.String()
	}

	for _, o := range m.overlays {
		subnet, err := o.AllocateAgentSubnet()
		if err != nil {
			m.log.WithFields(logrus.Fields{"agent": agent.ID, "overlay": o.Name}).WithError(err).Warn("overlay subnet pool exhausted")
			m.reportExhaustion("overlay:" + o.Name)
			continue
		}

		pair, err := bridge.Derive(o.Name, subnet)
		if err != nil {
			m.log.WithFields(logrus.Fields{"agent": agent.ID, "overlay": o.Name}).WithError(err).Error("bridge derivation failed")
			o.DeallocateAgentSubnet(subnet)
			continue
		}

		meta := m.overlayMeta[o.Name]

		agent.Records[o.Name] = &AgentOverlayRecord{
			OverlayName:   o.Name,
			OverlaySubnet: o.Supernet.String(),
			AgentPrefix:   int32(o.AgentPrefix),
			AgentSubnet:   subnet.String(),
			MesosBridge:   BridgeInfo{Name: pair.Mesos.Name, IP: pair.Mesos.Network.String()},
			DockerBridge:  BridgeInfo{Name: pair.Docker.Name, IP: pair.Docker.Network.String()},
			Backend: VXLANBackend{
				VNI:      meta.VNI,
				VTEPName: meta.VTEPNamePrefix,
				VTEPIP:   vtepIP,
				VTEPMAC:  vtepMAC,
			},
			Status: StatusRegistering,
		}
	}
}

// AgentRegistered handles an inbound AgentRegistered(a, records) message:
// copies each record's status into the stored record for that overlay,
// and reports whether an acknowledgement should be sent. An
// AgentRegistered from an unknown agent is a ProtocolError: logged and
// dropped, ok=false.
func (m *Machine) AgentRegistered(agentID string, records []*AgentOverlayRecord) (ok bool) {
	agent, exists := m.registry.Get(agentID)
	if !exists {
		m.log.WithField("agent", agentID).Warn("AgentRegistered from unknown agent")
		return false
	}
	for _, incoming := range records {
		if stored, ok := agent.Records[incoming.OverlayName]; ok {
			stored.Status = incoming.Status
		}
	}
	return true
}
