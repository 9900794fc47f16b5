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
	"sync"
	"time"
)

// fakeDevice records every LED level written.
type fakeDevice struct {
	mu     sync.Mutex
	levels []bool
}

func (d *fakeDevice) LED(on bool) {
	d.mu.Lock()
	d.levels = append(d.levels, on)
	d.mu.Unlock()
}

func (d *fakeDevice) Levels() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.levels...)
}

// newTestActuator returns an actuator that does not sleep, with its
// initial switch-off already cleared from the device record.
func newTestActuator() (*Actuator, *fakeDevice, *[]time.Duration) {
	dev := new(fakeDevice)
	act := NewActuator(dev, nil)
	slept := new([]time.Duration)
	act.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	dev.levels = nil
	return act, dev, slept
}

//----------------------------------------------------------------------

// fakeTransport counts requests; events are injected by the test.
type fakeTransport struct {
	mu       sync.Mutex
	sink     EventSink
	starts   int
	connects int
	startErr error
}

func (t *fakeTransport) Start(sink EventSink) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts++
	t.sink = sink
	return t.startErr
}

func (t *fakeTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	return nil
}

func (t *fakeTransport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

//----------------------------------------------------------------------

type published struct {
	channel string
	payload string
}

// fakeMessenger delivers injected payloads and records publishes.
type fakeMessenger struct {
	*postOffice
	mu      sync.Mutex
	sent    []published
	failPub error
	failSub error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{postOffice: newPostOffice(DefaultQueueDepth)}
}

func (m *fakeMessenger) Subscribe(channel string) (Inbox, error) {
	if m.failSub != nil {
		return nil, m.failSub
	}
	return m.open(channel), nil
}

func (m *fakeMessenger) Publish(channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPub != nil {
		return m.failPub
	}
	m.sent = append(m.sent, published{channel, string(payload)})
	return nil
}

func (m *fakeMessenger) inject(channel, payload string) {
	m.deliver(channel, []byte(payload))
}

func (m *fakeMessenger) Sent() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.sent...)
}

//----------------------------------------------------------------------

var errUnreachable = errors.New("unreachable")

// fakeProber fails a given number of probes before answering.
type fakeProber struct {
	mu       sync.Mutex
	failures int
	calls    []Endpoint
}

func (p *fakeProber) Probe(ep Endpoint, _ time.Duration, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, ep)
	if p.failures > 0 {
		p.failures--
		return errUnreachable
	}
	return nil
}

// countingObserver records notifications.
type countingObserver struct {
	mu         sync.Mutex
	states     []LinkState
	probes     int
	dispatched map[string]int
	dropped    map[string]int
	published  int
	pubErrors  int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		dispatched: make(map[string]int),
		dropped:    make(map[string]int),
	}
}

func (o *countingObserver) LinkState(s LinkState, _ int) {
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
}

func (o *countingObserver) ProbeFailed() {
	o.mu.Lock()
	o.probes++
	o.mu.Unlock()
}

func (o *countingObserver) Dispatched(ch string) {
	o.mu.Lock()
	o.dispatched[ch]++
	o.mu.Unlock()
}

func (o *countingObserver) Dropped(ch string) {
	o.mu.Lock()
	o.dropped[ch]++
	o.mu.Unlock()
}

func (o *countingObserver) Published(err error) {
	o.mu.Lock()
	o.published++
	if err != nil {
		o.pubErrors++
	}
	o.mu.Unlock()
}
