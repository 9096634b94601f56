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

// Package master wires the configured overlays, the VTEP allocator and
// the registration state machine into a single event loop: every
// command runs serialized on one goroutine, so nothing below this
// package needs its own locking.
package master

import (
	"sort"

	goerrors "github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"github.com/kaysoky/dcos-mesos-modules/plugins/config"
	"github.com/kaysoky/dcos-mesos-modules/plugins/metrics"
	"github.com/kaysoky/dcos-mesos-modules/plugins/overlay"
	"github.com/kaysoky/dcos-mesos-modules/plugins/registry"
	"github.com/kaysoky/dcos-mesos-modules/plugins/vtep"
)

// ErrClosed is returned by pushEvent (and its callers) once the event
// loop has been stopped.
var ErrClosed = goerrors.New("master: event loop is closed")

// eventQueueSize bounds how many pending commands may be queued before
// pushEvent blocks. There is no intra-core parallelism, so a generous
// buffer just smooths bursts of concurrent HTTP requests.
const eventQueueSize = 256

// event is a unit of work executed on the actor goroutine.
type event struct {
	run  func()
	done chan struct{}
}

// OverlaySummary is the read-only shape of a configured overlay, used by
// the state endpoint.
type OverlaySummary struct {
	Name        string
	Supernet    string
	AgentPrefix int
}

// AgentSummary is the read-only shape of one registered agent, used by
// the state endpoint.
type AgentSummary struct {
	ID      string
	Records []*registry.AgentOverlayRecord
}

// Snapshot is the full read-only state document served by StateEndpoint.
type Snapshot struct {
	Overlays []OverlaySummary
	Agents   []AgentSummary
}

// Master is the single-actor control plane: one goroutine owns every
// pool, the registry and the state machine.
type Master struct {
	log      *logrus.Entry
	cfg      *config.Config
	overlays []*overlay.Pool
	vteps    *vtep.Allocator
	reg      *registry.Registry
	machine  *registry.Machine
	metrics  *metrics.Collectors

	events chan *event
	closed chan struct{}
}

// New builds a Master from a validated configuration and starts its
// event loop goroutine. mc may be nil to disable Prometheus
// reporting. Call Close to stop the loop.
func New(log *logrus.Entry, cfg *config.Config, mc *metrics.Collectors) (*Master, error) {
	overlays := make([]*overlay.Pool, 0, len(cfg.Overlays))
	meta := make(map[string]registry.OverlayMeta, len(cfg.Overlays))
	for _, oc := range cfg.Overlays {
		p, err := overlay.New(oc.Name, oc.Supernet, oc.AgentPrefix)
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, p)
		meta[oc.Name] = registry.OverlayMeta{VNI: oc.VNI, VTEPNamePrefix: oc.VTEPNamePrefix}
	}
	sort.Slice(overlays, func(i, j int) bool { return overlays[i].Name < overlays[j].Name })

	vteps := vtep.New(cfg.VTEPSubnet, cfg.VTEPMACOUI)
	reg := registry.New()
	machine := registry.NewMachine(log, overlays, meta, vteps, reg)
	if mc != nil {
		machine.SetMetrics(mc)
	}

	m := &Master{
		log:      log,
		cfg:      cfg,
		overlays: overlays,
		vteps:    vteps,
		reg:      reg,
		machine:  machine,
		metrics:  mc,
		events:   make(chan *event, eventQueueSize),
		closed:   make(chan struct{}),
	}
	go m.run()

	m.log.WithFields(logrus.Fields{
		"vtep_subnet": cfg.VTEPSubnet,
		"overlays":    overlayNames(overlays),
	}).Info("overlay master starting")

	return m, nil
}

func overlayNames(overlays []*overlay.Pool) []string {
	names := make([]string, len(overlays))
	for i, o := range overlays {
		names[i] = o.Name
	}
	return names
}

func (m *Master) run() {
	for {
		select {
		case ev := <-m.events:
			ev.run()
			close(ev.done)
		case <-m.closed:
			return
		}
	}
}

// pushEvent runs fn on the actor goroutine and blocks until it
// completes, or returns ErrClosed if the loop has already stopped.
func (m *Master) pushEvent(fn func()) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}
	ev := &event{run: fn, done: make(chan struct{})}
	select {
	case m.events <- ev:
	case <-m.closed:
		return ErrClosed
	}
	select {
	case <-ev.done:
		return nil
	case <-m.closed:
		return ErrClosed
	}
}

// Close stops the event loop. Any commands already queued but not yet
// run are abandoned.
func (m *Master) Close() {
	close(m.closed)
}

// Register handles an inbound Register(agentID) message and returns the
// records to send back as UpdateAgentOverlays.
func (m *Master) Register(agentID string) ([]*registry.AgentOverlayRecord, error) {
	var out []*registry.AgentOverlayRecord
	err := m.pushEvent(func() {
		out = m.machine.Register(agentID)
		if m.metrics != nil {
			m.metrics.RegisteredAgents.Set(float64(len(m.reg.All())))
		}
	})
	return out, err
}

// AgentRegistered handles an inbound AgentRegistered(agentID, records)
// message. ok is false if agentID is unknown (ProtocolError, logged and
// dropped by the state machine).
func (m *Master) AgentRegistered(agentID string, records []*registry.AgentOverlayRecord) (bool, error) {
	var ok bool
	err := m.pushEvent(func() {
		ok = m.machine.AgentRegistered(agentID, records)
	})
	return ok, err
}

// Snapshot returns a read-only copy of all configured overlays and
// registered agents, for StateEndpoint.
func (m *Master) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := m.pushEvent(func() {
		snap.Overlays = make([]OverlaySummary, len(m.overlays))
		for i, o := range m.overlays {
			snap.Overlays[i] = OverlaySummary{Name: o.Name, Supernet: o.Supernet.String(), AgentPrefix: o.AgentPrefix}
		}

		agents := m.reg.All()
		snap.Agents = make([]AgentSummary, 0, len(agents))
		for id, agent := range agents {
			records := make([]*registry.AgentOverlayRecord, 0, len(agent.Records))
			for _, o := range m.overlays {
				if rec, ok := agent.Records[o.Name]; ok {
					records = append(records, rec.Clone())
				}
			}
			snap.Agents = append(snap.Agents, AgentSummary{ID: id, Records: records})
		}
		sort.Slice(snap.Agents, func(i, j int) bool { return snap.Agents[i].ID < snap.Agents[j].ID })
	})
	return snap, err
}
