//go:build !rp2350

//----------------------------------------------------------------------
// This file is part of ledlink.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// ledlink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// ledlink is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package ledlink

import (
	"github.com/prometheus/client_golang/prometheus"
)

// linkStates in gauge order
var linkStates = []LinkState{LinkIdle, LinkStarting, LinkConnecting, LinkConnected, LinkReady, LinkFailed}

// PromObserver exports link and dispatch activity as Prometheus metrics.
type PromObserver struct {
	linkState  *prometheus.GaugeVec
	retries    prometheus.Gauge
	probes     prometheus.Counter
	dispatched *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	published  *prometheus.CounterVec
}

// NewPromObserver registers the ledlink metrics with reg.
func NewPromObserver(reg prometheus.Registerer) (*PromObserver, error) {
	o := &PromObserver{
		linkState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ledlink",
			Name:      "link_state",
			Help:      "1 for the current link state, 0 otherwise.",
		}, []string{"state"}),
		retries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledlink",
			Name:      "link_retries",
			Help:      "Reconnect attempts since the link was last ready.",
		}),
		probes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledlink",
			Name:      "agent_probe_failures_total",
			Help:      "Failed agent probes.",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledlink",
			Name:      "dispatched_total",
			Help:      "Handler invocations per channel.",
		}, []string{"channel"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledlink",
			Name:      "dropped_total",
			Help:      "Malformed payloads per channel.",
		}, []string{"channel"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledlink",
			Name:      "telemetry_published_total",
			Help:      "Telemetry publishes by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{o.linkState, o.retries, o.probes, o.dispatched, o.dropped, o.published} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// LinkState implements Observer.
func (o *PromObserver) LinkState(state LinkState, retries int) {
	for _, s := range linkStates {
		v := 0.0
		if s == state {
			v = 1
		}
		o.linkState.WithLabelValues(string(s)).Set(v)
	}
	o.retries.Set(float64(retries))
}

// ProbeFailed implements Observer.
func (o *PromObserver) ProbeFailed() {
	o.probes.Inc()
}

// Dispatched implements Observer.
func (o *PromObserver) Dispatched(channel string) {
	o.dispatched.WithLabelValues(channel).Inc()
}

// Dropped implements Observer.
func (o *PromObserver) Dropped(channel string) {
	o.dropped.WithLabelValues(channel).Inc()
}

// Published implements Observer.
func (o *PromObserver) Published(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.published.WithLabelValues(result).Inc()
}
