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

// Package transport carries the agent-protocol messages over HTTP:
// Register, UpdateAgentOverlays, AgentRegistered and
// AgentRegisteredAcknowledgement, and serves the read-only state
// endpoint. Message types implement proto.Message as a typing
// discipline, matching AgentOverlayRecord; the actual wire encoding is
// JSON.
package transport

import (
	"fmt"

	"github.com/kaysoky/dcos-mesos-modules/plugins/registry"
)

// Register is sent by an agent to begin (or repeat) registration.
type Register struct {
	AgentID string `json:"agent_id"`
}

func (m *Register) Reset()         { *m = Register{} }
func (m *Register) String() string { return fmt.Sprintf("%+v", *m) }
func (m *Register) ProtoMessage()  {}

// UpdateAgentOverlays is sent by the master in reply to Register.
type UpdateAgentOverlays struct {
	Overlays []*registry.AgentOverlayRecord `json:"overlays"`
}

func (m *UpdateAgentOverlays) Reset()         { *m = UpdateAgentOverlays{} }
func (m *UpdateAgentOverlays) String() string { return fmt.Sprintf("%+v", *m) }
func (m *UpdateAgentOverlays) ProtoMessage()  {}

// AgentRegistered is sent by an agent once it has applied the overlays
// from an UpdateAgentOverlays, carrying each overlay's new status.
type AgentRegistered struct {
	AgentID  string                          `json:"agent_id"`
	Overlays []*registry.AgentOverlayRecord `json:"overlays"`
}

func (m *AgentRegistered) Reset()         { *m = AgentRegistered{} }
func (m *AgentRegistered) String() string { return fmt.Sprintf("%+v", *m) }
func (m *AgentRegistered) ProtoMessage()  {}

// AgentRegisteredAcknowledgement is sent by the master in reply to a
// valid AgentRegistered message.
type AgentRegisteredAcknowledgement struct{}

func (m *AgentRegisteredAcknowledgement) Reset()         { *m = AgentRegisteredAcknowledgement{} }
func (m *AgentRegisteredAcknowledgement) String() string { return fmt.Sprintf("%+v", *m) }
func (m *AgentRegisteredAcknowledgement) ProtoMessage()  {}
