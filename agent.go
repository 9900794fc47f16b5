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
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// agent probe defaults
const (
	DefaultProbeTimeout  = time.Second // per probe attempt
	DefaultProbeAttempts = 10          // attempts per probe
	DefaultProbeInterval = time.Second // pause between failed probes
)

// Endpoint is the address of the remote agent.
type Endpoint struct {
	Host string
	Port uint16
}

// String returns "host:port".
func (ep Endpoint) String() string {
	return net.JoinHostPort(ep.Host, strconv.Itoa(int(ep.Port)))
}

// Prober checks once whether an agent answers at an endpoint, trying up
// to attempts times with the given timeout each.
type Prober interface {
	Probe(ep Endpoint, timeout time.Duration, attempts int) error
}

// EndpointResolver turns a configured endpoint into a probeable one
// (e.g. a name lookup or service discovery). It returns ep unchanged if
// there is nothing to resolve.
type EndpointResolver interface {
	Resolve(ep Endpoint) (Endpoint, error)
}

// AgentLink waits for the remote agent to come up over an established
// link.
type AgentLink struct {
	prober   Prober
	resolver EndpointResolver // optional
	interval time.Duration
	logger   *slog.Logger
	obs      Observer
}

// NewAgentLink creates an agent link probing with prober every interval.
// resolver may be nil.
func NewAgentLink(prober Prober, resolver EndpointResolver, interval time.Duration, logger *slog.Logger, obs Observer) *AgentLink {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &AgentLink{
		prober:   prober,
		resolver: resolver,
		interval: interval,
		logger:   orDiscard(logger),
		obs:      orNop(obs),
	}
}

// Discover probes the agent at a constant interval until it answers and
// returns the endpoint that answered. There is no attempt limit and no
// way to cancel: a missing agent is expected while the operator brings
// it up.
func (l *AgentLink) Discover(ep Endpoint, timeout time.Duration, attempts int) Endpoint {
	l.logger.Info("waiting for agent", slog.String("endpoint", ep.String()))
	var found Endpoint
	probe := func() error {
		target := ep
		if l.resolver != nil {
			var err error
			if target, err = l.resolver.Resolve(ep); err != nil {
				return err
			}
		}
		if err := l.prober.Probe(target, timeout, attempts); err != nil {
			return err
		}
		found = target
		return nil
	}
	notify := func(err error, next time.Duration) {
		l.obs.ProbeFailed()
		l.logger.Info("agent not reachable", slog.String("err", err.Error()), slog.Duration("retry", next))
	}
	// a constant backoff never stops, so this only returns on success
	_ = backoff.RetryNotify(probe, backoff.NewConstantBackOff(l.interval), notify)
	l.logger.Info("connected to agent", slog.String("endpoint", found.String()))
	return found
}
