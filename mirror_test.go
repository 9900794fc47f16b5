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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorKeepsLastPayload(t *testing.T) {
	inner := newFakeMessenger()
	mr := NewMirror(inner, ChannelStatus)
	require.Nil(t, mr.File("other"))
	f := mr.File(ChannelStatus)
	require.NotNil(t, f)

	require.NoError(t, mr.Publish(ChannelStatus, []byte("true")))
	require.NoError(t, mr.Publish("other", []byte("x")))
	data, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "true", string(data))
	assert.Len(t, inner.Sent(), 2)

	inner.failPub = errors.New("gone")
	assert.Error(t, mr.Publish(ChannelStatus, []byte("false")))
	data, _ = f.Read()
	assert.Equal(t, "false", string(data))
}

type fixedLink struct {
	state   LinkState
	retries int
}

func (l fixedLink) State() LinkState { return l.state }
func (l fixedLink) Retries() int     { return l.retries }

func TestStatusNamespace(t *testing.T) {
	telemetry := NewValueFile("true")
	status := NewStatus(new(fakeDevice))
	status.Set(StatOK, 0)
	ns, err := StatusNamespace(telemetry, fixedLink{LinkReady, 3}, status, "1.2.0")
	require.NoError(t, err)

	for path, want := range map[string]string{
		"/led/status":   "true",
		"/link/state":   "ready\n",
		"/link/retries": "3\n",
		"/status":       "OK\n",
		"/version":      "1.2.0\n",
	} {
		e, err := ns.Get(path)
		require.NoError(t, err, path)
		data, err := e.File().Read()
		require.NoError(t, err)
		assert.Equal(t, want, string(data), path)
	}
	e, err := ns.Get("/link")
	require.NoError(t, err)
	assert.True(t, e.IsDir())
}

func TestStatusNamespaceWithoutTelemetry(t *testing.T) {
	ns, err := StatusNamespace(nil, fixedLink{state: LinkIdle}, NewStatus(new(fakeDevice)), "dev")
	require.NoError(t, err)
	e, err := ns.Get("/led/status")
	require.NoError(t, err)
	data, err := e.File().Read()
	require.NoError(t, err)
	assert.Empty(t, data)
}
