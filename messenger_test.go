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

	"github.com/stretchr/testify/assert"
)

func TestMailboxFIFO(t *testing.T) {
	box := NewMailbox(3)
	assert.True(t, box.Put([]byte("a")))
	assert.True(t, box.Put([]byte("b")))
	for _, want := range []string{"a", "b"} {
		p, ok := box.Receive()
		assert.True(t, ok)
		assert.Equal(t, want, string(p))
	}
	_, ok := box.Receive()
	assert.False(t, ok)
}

func TestMailboxDropsOldest(t *testing.T) {
	box := NewMailbox(2)
	box.Put([]byte("1"))
	box.Put([]byte("2"))
	assert.False(t, box.Put([]byte("3")))
	assert.Equal(t, uint64(1), box.Dropped())
	p, _ := box.Receive()
	assert.Equal(t, "2", string(p))
	p, _ = box.Receive()
	assert.Equal(t, "3", string(p))
}

func TestMailboxCopiesPayload(t *testing.T) {
	box := NewMailbox(0)
	buf := []byte("on")
	box.Put(buf)
	buf[0] = 'x'
	p, _ := box.Receive()
	assert.Equal(t, "on", string(p))
}

func TestPostOfficeDeliver(t *testing.T) {
	po := newPostOffice(DefaultQueueDepth)
	assert.False(t, po.deliver("nobody", []byte("x")))
	box := po.open("led_control")
	assert.Same(t, box, po.open("led_control"))

	assert.True(t, po.deliver("led_control", []byte("true")))
	assert.True(t, po.deliver("led_control", []byte("false")))
	select {
	case <-po.Notify():
	default:
		t.Fatal("no notification")
	}
	select {
	case <-po.Notify():
		t.Fatal("notifications must coalesce")
	default:
	}
	p, ok := box.Receive()
	assert.True(t, ok)
	assert.Equal(t, "true", string(p))
}
