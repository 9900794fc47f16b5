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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bfix/ledlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigFile(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	old := runConfig
	runConfig = path
	t.Cleanup(func() { runConfig = old })
}

// A file that only the command line makes valid is accepted.
func TestRunSettingsFlagsBeforeValidation(t *testing.T) {
	withConfigFile(t, "messenger: none\n")
	flags := runCmd.Flags()
	_, err := runSettings(flags)
	var ve *ledlink.ValidationError
	require.ErrorAs(t, err, &ve)

	require.NoError(t, flags.Set("messenger", ledlink.MessengerStream))
	require.NoError(t, flags.Set("peer", "192.168.1.10"))
	t.Cleanup(func() {
		flags.Lookup("messenger").Changed = false
		flags.Lookup("peer").Changed = false
		runMessenger, runPeer = ledlink.MessengerMQTT, ""
	})
	cfg, err := runSettings(flags)
	require.NoError(t, err)
	assert.Equal(t, ledlink.MessengerStream, cfg.Messenger)
	assert.Equal(t, "192.168.1.10", cfg.PeerAddress)
}

func TestRunSettingsDefaults(t *testing.T) {
	withConfigFile(t, "")
	cfg, err := runSettings(runCmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, ledlink.MessengerMQTT, cfg.Messenger)
}
