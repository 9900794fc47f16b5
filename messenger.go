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
	"sync"
)

// DefaultQueueDepth is the number of undelivered payloads kept per
// channel; older ones are dropped first.
const DefaultQueueDepth = 4

// Inbox yields the payloads received on one channel.
type Inbox interface {
	// Receive returns the oldest pending payload without blocking.
	Receive() ([]byte, bool)
}

// Messenger is the pub/sub agent protocol seen by the executor.
// Publishing carries no delivery guarantee.
type Messenger interface {
	// Subscribe registers an inbound channel.
	Subscribe(channel string) (Inbox, error)
	// Publish sends payload on an outbound channel.
	Publish(channel string, payload []byte) error
	// Notify is signaled when new data may be pending on any inbox.
	Notify() <-chan struct{}
}

//----------------------------------------------------------------------

// Mailbox is a bounded FIFO of payloads for one channel.
type Mailbox struct {
	mu      sync.Mutex
	queue   [][]byte
	depth   int
	dropped uint64
}

// NewMailbox creates a mailbox holding up to depth payloads.
func NewMailbox(depth int) *Mailbox {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Mailbox{depth: depth}
}

// Put stores a copy of payload. If the mailbox is full the oldest
// payload is dropped and false is returned.
func (m *Mailbox) Put(payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := true
	if len(m.queue) >= m.depth {
		m.queue = m.queue[1:]
		m.dropped++
		kept = false
	}
	m.queue = append(m.queue, append([]byte(nil), payload...))
	return kept
}

// Receive implements Inbox.
func (m *Mailbox) Receive() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	p := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return p, true
}

// Dropped returns the number of payloads lost to overflow.
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

//----------------------------------------------------------------------

// postOffice routes inbound payloads to per-channel mailboxes and
// raises the shared notification.
type postOffice struct {
	mu     sync.RWMutex
	boxes  map[string]*Mailbox
	depth  int
	notify chan struct{}
}

func newPostOffice(depth int) *postOffice {
	return &postOffice{
		boxes:  make(map[string]*Mailbox),
		depth:  depth,
		notify: make(chan struct{}, 1),
	}
}

// open returns the mailbox for channel, creating it if needed.
func (po *postOffice) open(channel string) *Mailbox {
	po.mu.Lock()
	defer po.mu.Unlock()
	box, ok := po.boxes[channel]
	if !ok {
		box = NewMailbox(po.depth)
		po.boxes[channel] = box
	}
	return box
}

// deliver stores payload for channel. It returns false if nobody
// subscribed to channel.
func (po *postOffice) deliver(channel string, payload []byte) bool {
	po.mu.RLock()
	box, ok := po.boxes[channel]
	po.mu.RUnlock()
	if !ok {
		return false
	}
	box.Put(payload)
	select {
	case po.notify <- struct{}{}:
	default:
	}
	return true
}

// Notify implements Messenger.
func (po *postOffice) Notify() <-chan struct{} {
	return po.notify
}
