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

// Command overlay-masterd is the overlay network address-allocation
// master: it loads and validates a static overlay configuration, then
// serves the agent registration protocol and a read-only state endpoint
// over HTTP until terminated.
package main

import (
	"net/http"

	"github.com/namsral/flag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/kaysoky/dcos-mesos-modules/plugins/config"
	"github.com/kaysoky/dcos-mesos-modules/plugins/master"
	"github.com/kaysoky/dcos-mesos-modules/plugins/metrics"
	"github.com/kaysoky/dcos-mesos-modules/plugins/transport"
)

func main() {
	var (
		configPath = flag.String("config", "/etc/overlay-master/config.yaml", "path to the overlay configuration document")
		listenAddr = flag.String("listen", ":5050", "HTTP listen address")
		moduleID   = flag.String("id", "overlay-master", "module id, used as the state endpoint's path prefix")
		logLevel   = flag.String("log-level", "info", "logrus level: debug, info, warn, error")
	)
	flag.Parse()

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid -log-level")
	}
	log.SetLevel(level)
	entry := logrus.NewEntry(log)

	doc, err := config.Load(*configPath)
	if err != nil {
		entry.WithError(err).Fatal("failed to load configuration")
	}
	cfg, err := config.Validate(doc)
	if err != nil {
		entry.WithError(err).Fatal("invalid configuration")
	}

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)

	m, err := master.New(entry, cfg, collectors)
	if err != nil {
		entry.WithError(err).Fatal("failed to start master")
	}
	defer m.Close()

	router := transport.NewRouter(entry, *moduleID, m)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	entry.WithField("addr", *listenAddr).Info("overlay-masterd listening")
	if err := http.ListenAndServe(*listenAddr, router); err != nil {
		entry.WithError(err).Fatal("HTTP server exited")
	}
}
