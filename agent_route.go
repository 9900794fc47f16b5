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
	"errors"
	"net/netip"
)

var errNoPort = errors.New("agent port not set")

// agentRoute opens a TCP connection to an agent on a bare network stack.
// The next hop is found via arp; a peer that does not answer itself is
// reached through the router.
type agentRoute struct {
	arp    func(ip netip.Addr) ([6]byte, error)
	dial   func(hw [6]byte, addr netip.AddrPort) error
	router func() netip.Addr
}

// connect tries up to attempts times to resolve the next hop and
// complete a TCP handshake with ep.
func (r agentRoute) connect(ep Endpoint, attempts int) (err error) {
	ip, err := netip.ParseAddr(ep.Host)
	if err != nil {
		return err
	}
	if ep.Port == 0 {
		return errNoPort
	}
	addr := netip.AddrPortFrom(ip, ep.Port)
	for range max(attempts, 1) {
		var hw [6]byte
		if hw, err = r.nextHop(ip); err != nil {
			continue
		}
		if err = r.dial(hw, addr); err == nil {
			return nil
		}
	}
	return err
}

func (r agentRoute) nextHop(ip netip.Addr) ([6]byte, error) {
	hw, err := r.arp(ip)
	if err == nil || r.router == nil {
		return hw, err
	}
	gw := r.router()
	if !gw.IsValid() || gw == ip {
		return hw, err
	}
	return r.arp(gw)
}
