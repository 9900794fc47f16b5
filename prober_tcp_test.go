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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenerEndpoint(t *testing.T, lst net.Listener) Endpoint {
	t.Helper()
	addr := lst.Addr().(*net.TCPAddr)
	return Endpoint{Host: addr.IP.String(), Port: uint16(addr.Port)}
}

func TestTCPProber(t *testing.T) {
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep := listenerEndpoint(t, lst)
	go func() {
		for {
			c, err := lst.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	assert.NoError(t, NewTCPProber().Probe(ep, time.Second, 1))

	lst.Close()
	assert.Error(t, NewTCPProber().Probe(ep, 100*time.Millisecond, 2))
}

func TestTCPProberAttempts(t *testing.T) {
	calls := 0
	p := &TCPProber{dial: func(_, _ string, _ time.Duration) (net.Conn, error) {
		calls++
		return nil, errUnreachable
	}}
	err := p.Probe(Endpoint{Host: "10.0.0.1", Port: 1}, time.Millisecond, 3)
	assert.ErrorIs(t, err, errUnreachable)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, p.Probe(Endpoint{}, time.Millisecond, 0), errNoAttempts)
}
