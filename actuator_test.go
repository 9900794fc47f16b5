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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActuatorStartsOff(t *testing.T) {
	dev := new(fakeDevice)
	act := NewActuator(dev, nil)
	assert.False(t, act.State())
	assert.Equal(t, []bool{false}, dev.Levels())
}

func TestActuatorOnOffIdempotent(t *testing.T) {
	act, dev, _ := newTestActuator()
	act.On()
	act.On()
	assert.True(t, act.State())
	act.Off()
	act.Off()
	assert.False(t, act.State())
	assert.Equal(t, []bool{true, true, false, false}, dev.Levels())
}

func TestActuatorToggle(t *testing.T) {
	act, dev, _ := newTestActuator()
	act.Toggle()
	assert.True(t, act.State())
	act.Toggle()
	assert.False(t, act.State())
	assert.Equal(t, []bool{true, false}, dev.Levels())
}

func TestActuatorBlink(t *testing.T) {
	act, dev, slept := newTestActuator()
	act.On()
	act.Blink(3, 200*time.Millisecond)
	assert.False(t, act.State())
	assert.Equal(t, []bool{true, true, false, true, false, true, false}, dev.Levels())
	assert.Len(t, *slept, 6)
	var total time.Duration
	for _, d := range *slept {
		total += d
	}
	assert.Equal(t, 1200*time.Millisecond, total)
}

func TestActuatorBlinkClamps(t *testing.T) {
	for _, tc := range []struct {
		times, cycles int
	}{
		{0, 1},
		{-4, 1},
		{1, 1},
		{20, 20},
		{25, 20},
	} {
		act, dev, _ := newTestActuator()
		act.Blink(tc.times, time.Millisecond)
		assert.Len(t, dev.Levels(), 2*tc.cycles, "times=%d", tc.times)
		assert.False(t, act.State())
	}
}

func TestClampBlinks(t *testing.T) {
	assert.Equal(t, MinBlinks, ClampBlinks(-1))
	assert.Equal(t, 7, ClampBlinks(7))
	assert.Equal(t, MaxBlinks, ClampBlinks(1000))
}
