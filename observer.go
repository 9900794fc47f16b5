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

// Observer receives notifications about link and dispatch activity.
// Implementations must not block.
type Observer interface {
	// LinkState is called on every link state change.
	LinkState(state LinkState, retries int)
	// ProbeFailed is called for every failed agent probe.
	ProbeFailed()
	// Dispatched is called after a handler ran for channel.
	Dispatched(channel string)
	// Dropped is called when a payload for channel could not be decoded.
	Dropped(channel string)
	// Published is called after every telemetry publish.
	Published(err error)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) LinkState(LinkState, int) {}
func (NopObserver) ProbeFailed()             {}
func (NopObserver) Dispatched(string)        {}
func (NopObserver) Dropped(string)           {}
func (NopObserver) Published(error)          {}

func orNop(obs Observer) Observer {
	if obs == nil {
		return NopObserver{}
	}
	return obs
}
