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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/grandcat/zeroconf"
)

// mDNS defaults
const (
	DefaultMDNSService = "_mqtt._tcp"
	mdnsDomain         = "local."
	mdnsScanTimeout    = 3 * time.Second
)

var errNoAgent = errors.New("no agent advertised")

// MDNSResolver finds the agent via DNS-SD when no host is configured.
type MDNSResolver struct {
	service string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMDNSResolver browses for service (DefaultMDNSService if empty).
func NewMDNSResolver(service string, logger *slog.Logger) *MDNSResolver {
	if service == "" {
		service = DefaultMDNSService
	}
	return &MDNSResolver{
		service: service,
		timeout: mdnsScanTimeout,
		logger:  orDiscard(logger),
	}
}

// Resolve returns ep unchanged if it names a host; otherwise the first
// advertised instance of the service. The advertised port is used; the
// port in ep only fills in for instances advertising none.
func (r *MDNSResolver) Resolve(ep Endpoint) (Endpoint, error) {
	if ep.Host != "" {
		return ep, nil
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return Endpoint{}, fmt.Errorf("mdns resolver: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, r.service, mdnsDomain, entries); err != nil {
		return Endpoint{}, fmt.Errorf("mdns browse: %w", err)
	}
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return Endpoint{}, errNoAgent
			}
			if found, ok := entryEndpoint(entry, ep.Port); ok {
				r.logger.Debug("mdns discovered agent", slog.String("instance", entry.Instance), slog.String("endpoint", found.String()))
				return found, nil
			}
		case <-ctx.Done():
			return Endpoint{}, fmt.Errorf("%w: %s", errNoAgent, r.service)
		}
	}
}

// entryEndpoint picks an address from a service entry, IPv4 first.
// fallback is the port used when the entry advertises none.
func entryEndpoint(entry *zeroconf.ServiceEntry, fallback uint16) (Endpoint, bool) {
	if entry == nil {
		return Endpoint{}, false
	}
	port := fallback
	if entry.Port > 0 && entry.Port <= 0xffff {
		port = uint16(entry.Port)
	}
	switch {
	case len(entry.AddrIPv4) > 0:
		return Endpoint{Host: entry.AddrIPv4[0].String(), Port: port}, true
	case len(entry.AddrIPv6) > 0:
		return Endpoint{Host: entry.AddrIPv6[0].String(), Port: port}, true
	}
	return Endpoint{}, false
}
