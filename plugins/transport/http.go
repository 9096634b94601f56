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

package transport

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/unrolled/render"

	"github.com/kaysoky/dcos-mesos-modules/plugins/master"
	"github.com/kaysoky/dcos-mesos-modules/plugins/registry"
)

// StateDocument is the wire shape served by GET /{id}/state and its
// aliases.
type StateDocument struct {
	Overlays []master.OverlaySummary `json:"overlays"`
	Agents   []AgentDocument         `json:"agents"`
}

// AgentDocument is one agent's entry within a StateDocument.
type AgentDocument struct {
	IP       string                          `json:"ip"`
	Overlays []*registry.AgentOverlayRecord `json:"overlays"`
}

// NewRouter builds the HTTP transport for the agent protocol and the
// read-only state endpoint. id names the module instance the way the
// original Mesos module scheme addresses a registered module by name.
func NewRouter(log *logrus.Entry, id string, m *master.Master) *mux.Router {
	formatter := render.New(render.Options{IndentJSON: false})
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthzHandler()).Methods(http.MethodGet)
	r.HandleFunc("/"+id+"/state", stateHandler(m, formatter)).Methods(http.MethodGet)
	r.HandleFunc("/"+id+"/state.json", stateHandler(m, formatter)).Methods(http.MethodGet)
	r.HandleFunc("/agents/{agent}/register", registerHandler(log, m, formatter)).Methods(http.MethodPost)
	r.HandleFunc("/agents/{agent}/registered", agentRegisteredHandler(log, m, formatter)).Methods(http.MethodPost)

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

// stateHandler serves the plain and JSONP variants of the state
// document off of the same handler, matching the original master's
// dual plain/JSONP responses.
func stateHandler(m *master.Master, formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := m.Snapshot()
		if err != nil {
			formatter.Text(w, http.StatusServiceUnavailable, err.Error())
			return
		}

		doc := StateDocument{Overlays: snap.Overlays}
		for _, a := range snap.Agents {
			doc.Agents = append(doc.Agents, AgentDocument{IP: a.ID, Overlays: a.Records})
		}

		if callback := r.URL.Query().Get("jsonp"); callback != "" {
			formatter.JSONP(w, http.StatusOK, callback, doc)
			return
		}
		formatter.JSON(w, http.StatusOK, doc)
	}
}

func registerHandler(log *logrus.Entry, m *master.Master, formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := mux.Vars(r)["agent"]

		var req Register
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			formatter.Text(w, http.StatusBadRequest, "malformed request body")
			return
		}

		records, err := m.Register(agentID)
		if err != nil {
			log.WithError(err).Error("register failed")
			formatter.Text(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		formatter.JSON(w, http.StatusOK, UpdateAgentOverlays{Overlays: records})
	}
}

func agentRegisteredHandler(log *logrus.Entry, m *master.Master, formatter *render.Render) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := mux.Vars(r)["agent"]

		var req AgentRegistered
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			formatter.Text(w, http.StatusBadRequest, "malformed request body")
			return
		}

		ok, err := m.AgentRegistered(agentID, req.Overlays)
		if err != nil {
			log.WithError(err).Error("agent-registered failed")
			formatter.Text(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if !ok {
			formatter.Text(w, http.StatusNotFound, "unknown agent")
			return
		}
		formatter.JSON(w, http.StatusOK, AgentRegisteredAcknowledgement{})
	}
}
