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
	"bufio"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// stream write deadline per telemetry line
const streamWriteTimeout = 100 * time.Millisecond

var errClosed = errors.New("messenger closed")

// StreamMessenger speaks a line protocol over accepted connections.
// Every line is "<channel> <payload>". Inbound lines feed the channel
// mailboxes; published lines go to every connected peer.
type StreamMessenger struct {
	*postOffice
	lst    net.Listener
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	logger *slog.Logger
}

// NewStreamMessenger serves the line protocol on lst once Serve runs.
func NewStreamMessenger(lst net.Listener, depth int, logger *slog.Logger) *StreamMessenger {
	return &StreamMessenger{
		postOffice: newPostOffice(depth),
		lst:        lst,
		conns:      make(map[net.Conn]struct{}),
		logger:     orDiscard(logger),
	}
}

// Serve accepts peers until the listener fails or Close is called.
func (m *StreamMessenger) Serve() error {
	for {
		c, err := m.lst.Accept()
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return errClosed
			}
			return err
		}
		m.mu.Lock()
		m.conns[c] = struct{}{}
		m.mu.Unlock()
		m.logger.Info("peer connected", slog.String("remote", c.RemoteAddr().String()))
		go m.handle(c)
	}
}

// Close stops serving and disconnects all peers.
func (m *StreamMessenger) Close() error {
	m.mu.Lock()
	m.closed = true
	for c := range m.conns {
		c.Close()
		delete(m.conns, c)
	}
	m.mu.Unlock()
	return m.lst.Close()
}

func (m *StreamMessenger) handle(c net.Conn) {
	defer m.drop(c)
	scanner := bufio.NewScanner(c)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		channel, payload, _ := strings.Cut(line, " ")
		if !m.deliver(channel, []byte(payload)) {
			m.logger.Warn("unknown channel", slog.String("channel", channel))
		}
	}
}

func (m *StreamMessenger) drop(c net.Conn) {
	m.mu.Lock()
	delete(m.conns, c)
	m.mu.Unlock()
	c.Close()
	m.logger.Info("peer disconnected", slog.String("remote", c.RemoteAddr().String()))
}

// Subscribe implements Messenger.
func (m *StreamMessenger) Subscribe(channel string) (Inbox, error) {
	return m.open(channel), nil
}

// Publish implements Messenger. Peers that cannot take the line are
// disconnected.
func (m *StreamMessenger) Publish(channel string, payload []byte) error {
	line := make([]byte, 0, len(channel)+len(payload)+2)
	line = append(line, channel...)
	line = append(line, ' ')
	line = append(line, payload...)
	line = append(line, '\n')

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	for c := range m.conns {
		_ = c.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if _, err := c.Write(line); err != nil {
			m.logger.Debug("dropping peer", slog.String("remote", c.RemoteAddr().String()), slog.String("err", err.Error()))
			c.Close()
			delete(m.conns, c)
		}
	}
	return nil
}
