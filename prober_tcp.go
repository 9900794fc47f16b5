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
	"errors"
	"fmt"
	"net"
	"time"
)

var errNoAttempts = errors.New("no probe attempts")

// TCPProber checks that the agent accepts TCP connections.
type TCPProber struct {
	dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

// NewTCPProber creates a prober dialing with net.DialTimeout.
func NewTCPProber() *TCPProber {
	return &TCPProber{dial: net.DialTimeout}
}

// Probe dials ep up to attempts times.
func (p *TCPProber) Probe(ep Endpoint, timeout time.Duration, attempts int) error {
	err := errNoAttempts
	for range attempts {
		var conn net.Conn
		if conn, err = p.dial("tcp", ep.String(), timeout); err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("probe %s: %w", ep, err)
}
