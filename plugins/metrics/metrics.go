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

// Package metrics exposes the daemon's ambient observability: a gauge
// for the current agent count, a counter for pool exhaustion (which the
// RegistrationStateMachine logs as a non-fatal error), and a counter for
// re-registrations.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles the counters and gauges registered on a Registerer.
type Collectors struct {
	RegisteredAgents prometheus.Gauge
	PoolExhaustions  *prometheus.CounterVec
	ReRegistrations  prometheus.Counter
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		RegisteredAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "overlay_master",
			Name:      "registered_agents",
			Help:      "Number of agents currently present in the registry.",
		}),
		PoolExhaustions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlay_master",
			Name:      "pool_exhaustions_total",
			Help:      "Count of Exhaustion errors, labeled by pool.",
		}, []string{"pool"}),
		ReRegistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay_master",
			Name:      "re_registrations_total",
			Help:      "Count of Register messages from already-registered agents.",
		}),
	}
	reg.MustRegister(c.RegisteredAgents, c.PoolExhaustions, c.ReRegistrations)
	return c
}

// IncPoolExhaustion implements registry.Metrics.
func (c *Collectors) IncPoolExhaustion(pool string) {
	c.PoolExhaustions.WithLabelValues(pool).Inc()
}

// IncReRegistration implements registry.Metrics.
func (c *Collectors) IncReRegistration() {
	c.ReRegistrations.Inc()
}
