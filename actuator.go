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
	"time"
)

// blink parameters
const (
	MinBlinks            = 1                      // lower clamp for blink repeats
	MaxBlinks            = 20                     // upper clamp for blink repeats
	DefaultBlinks        = 5                      // repeats for a bare BLINK
	DefaultBlinkInterval = 200 * time.Millisecond // on and off phase length
)

// ClampBlinks limits a requested repeat count to [MinBlinks,MaxBlinks].
func ClampBlinks(n int) int {
	return min(max(n, MinBlinks), MaxBlinks)
}

// Actuator owns the on/off state of the output driven through a Device.
// It is not safe for concurrent use: all calls must come from the
// dispatch worker.
type Actuator struct {
	dev    Device
	state  bool
	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewActuator drives the output of dev and switches it off.
func NewActuator(dev Device, logger *slog.Logger) *Actuator {
	a := &Actuator{
		dev:    dev,
		sleep:  time.Sleep,
		logger: orDiscard(logger),
	}
	a.set(false)
	a.logger.Info("actuator initialized", slog.Bool("on", a.state))
	return a
}

func (a *Actuator) set(on bool) {
	a.dev.LED(on)
	a.state = on
}

// State returns true if the output is on.
func (a *Actuator) State() bool {
	return a.state
}

// On switches the output on.
func (a *Actuator) On() {
	a.set(true)
	a.logger.Debug("LED turned ON")
}

// Off switches the output off.
func (a *Actuator) Off() {
	a.set(false)
	a.logger.Debug("LED turned OFF")
}

// Toggle flips the output.
func (a *Actuator) Toggle() {
	a.set(!a.state)
	a.logger.Debug("LED toggled", slog.Bool("on", a.state))
}

// Blink cycles the output on and off. The repeat count is clamped, never
// rejected. The call blocks for times*2*interval and ends with the output
// off.
func (a *Actuator) Blink(times int, interval time.Duration) {
	times = ClampBlinks(times)
	a.logger.Info("blinking LED", slog.Int("times", times), slog.Duration("interval", interval))
	for range times {
		a.On()
		a.sleep(interval)
		a.Off()
		a.sleep(interval)
	}
}
