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
	"fmt"
	"sync/atomic"
	"time"
)

// status codes
const (
	StatUNK     = iota // unknown status (init)
	StatOK             // processing active
	StatDEV            // device failure
	StatCONF           // invalid configuration
	StatIP             // invalid IP address
	StatWIFI           // can't initialize WiFi chip
	StatWPA2           // can't join the access point
	StatDHCP1          // DHCP request failed
	StatDHCP2          // no DHCP reply
	StatLINK           // link retries exhausted
	StatAGENT          // agent unusable
	StatMSG            // messenger setup failed
	StatLISTEN1        // failed to create listener
	StatLISTEN2        // failed to initialize listener
	StatPORT           // invalid port specified
	StatEXCP           // exception (panic) occured
)

var statNames = [...]string{
	"UNK", "OK", "DEV", "CONF", "IP", "WIFI", "WPA2", "DHCP1", "DHCP2",
	"LINK", "AGENT", "MSG", "LISTEN1", "LISTEN2", "PORT", "EXCP",
}

// StatusText returns the short name of a status code.
func StatusText(code int) string {
	if code < 0 || code >= len(statNames) {
		return fmt.Sprintf("STAT(%d)", code)
	}
	return statNames[code]
}

// Status register of the device. While the control loop owns the LED
// the status is only recorded; Display shows it as a blink code once
// the device gave up.
type Status struct {
	dev    Device       // reference to device
	curr   atomic.Int32 // current state
	repeat atomic.Int32 // current repeat counter
	sleep  func(time.Duration)
}

// NewStatus creates a new status register showing on dev.
func NewStatus(dev Device) *Status {
	state := &Status{dev: dev, sleep: time.Sleep}
	state.curr.Store(StatUNK)
	return state
}

// Set status and repeat <num> times (0: forever).
func (state *Status) Set(flag, num int) {
	if state != nil {
		state.curr.Store(int32(flag))
		state.repeat.Store(int32(num))
	}
}

// Get current state and repeat counter
func (state *Status) Get() (int, int) {
	return int(state.curr.Load()), int(state.repeat.Load())
}

// String returns the name of the current state.
func (state *Status) String() string {
	s, _ := state.Get()
	return StatusText(s)
}

// Show blinks the current status once: a long pulse for every five,
// a short pulse for each remaining unit. It returns false once the
// repeat counter ran out and the status fell back to OK.
func (state *Status) Show() bool {
	num := state.curr.Load()
	if num == StatOK {
		return false
	}
	for num > 5 {
		state.dev.LED(true)
		state.sleep(1000 * time.Millisecond)
		state.dev.LED(false)
		state.sleep(300 * time.Millisecond)
		num -= 5
	}
	for range num {
		state.dev.LED(true)
		state.sleep(150 * time.Millisecond)
		state.dev.LED(false)
		state.sleep(150 * time.Millisecond)
	}
	if state.repeat.Add(-1) == 0 {
		state.curr.Store(StatOK)
		return false
	}
	return true
}

// Display shows the status every five seconds until it is cleared.
func (state *Status) Display() {
	for {
		state.sleep(5 * time.Second)
		if !state.Show() {
			return
		}
	}
}

// Trap critical failures (panic). Deferred by the entry point; it
// keeps the failure code on the LED for t.
func (state *Status) Trap(t time.Duration) {
	s, _ := state.Get()
	if r := recover(); r != nil {
		fmt.Printf("EXCP: %v\n", r)
		if s == StatOK {
			state.Set(StatEXCP, 0)
		}
	} else if s == StatOK {
		state.Set(StatUNK, 0)
	}
	end := time.Now().Add(t)
	for time.Now().Before(end) && state.Show() {
		state.sleep(time.Second)
	}
}
