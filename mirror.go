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
	"strconv"
)

// Mirror is a Messenger that keeps a copy of the last payload
// published on every outbound channel.
type Mirror struct {
	Messenger
	files map[string]*ValueFile
}

// NewMirror wraps m and mirrors the given outbound channels.
func NewMirror(m Messenger, channels ...string) *Mirror {
	mr := &Mirror{
		Messenger: m,
		files:     make(map[string]*ValueFile),
	}
	for _, ch := range channels {
		mr.files[ch] = NewValueFile("")
	}
	return mr
}

// Publish records payload and forwards it. The copy is kept even if
// forwarding fails.
func (mr *Mirror) Publish(channel string, payload []byte) error {
	if f, ok := mr.files[channel]; ok {
		f.Set(payload)
	}
	return mr.Messenger.Publish(channel, payload)
}

// File returns the mirror of channel (nil if not mirrored).
func (mr *Mirror) File(channel string) *ValueFile {
	return mr.files[channel]
}

//----------------------------------------------------------------------

// LinkInfo reports the link state; implemented by *Supervisor.
type LinkInfo interface {
	State() LinkState
	Retries() int
}

// StatusNamespace builds the read-only status tree:
//
//	/led/status    last telemetry payload
//	/link/state    link state name
//	/link/retries  reconnect attempts since the last ready state
//	/version       firmware version
//	/status        device status code name
func StatusNamespace(telemetry *ValueFile, link LinkInfo, status *Status, version string) (*Namespace, error) {
	if telemetry == nil {
		telemetry = NewValueFile("")
	}
	ns := NewNamespace("ledlink", "ledlink")
	line := func(fcn func() string) File {
		return NewFuncFile(func() ([]byte, error) {
			return []byte(fcn() + "\n"), nil
		})
	}
	var err error
	step := func(fcn func() error) {
		if err == nil {
			err = fcn()
		}
	}
	step(func() error { return ns.NewDir("/led", 0555) })
	step(func() error { return ns.NewFile("/led/status", 0444, telemetry) })
	step(func() error { return ns.NewDir("/link", 0555) })
	step(func() error {
		return ns.NewFile("/link/state", 0444, line(func() string { return string(link.State()) }))
	})
	step(func() error {
		return ns.NewFile("/link/retries", 0444, line(func() string { return strconv.Itoa(link.Retries()) }))
	})
	step(func() error { return ns.NewFile("/status", 0444, line(status.String)) })
	step(func() error { return ns.NewFile("/version", 0444, NewTextFile(version+"\n")) })
	if err != nil {
		return nil, err
	}
	return ns, nil
}
