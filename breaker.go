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

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the telemetry circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"` // consecutive failures to open
	Timeout     time.Duration `yaml:"timeout"`      // open period before a probe
}

// breaker defaults
const (
	defaultBreakerFailures uint32 = 3
	defaultBreakerTimeout         = 10 * time.Second
)

// BreakerMessenger stops publishing while the agent keeps failing so a
// dead broker costs the dispatch loop nothing.
type BreakerMessenger struct {
	Messenger
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerMessenger wraps inner.
func NewBreakerMessenger(inner Messenger, cfg BreakerConfig, logger *slog.Logger) *BreakerMessenger {
	logger = orDiscard(logger)
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerFailures
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "telemetry",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &BreakerMessenger{Messenger: inner, cb: cb}
}

// Publish forwards to the wrapped messenger unless the breaker is open.
func (b *BreakerMessenger) Publish(channel string, payload []byte) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.Messenger.Publish(channel, payload)
	})
	return err
}

// State returns the breaker state.
func (b *BreakerMessenger) State() gobreaker.State {
	return b.cb.State()
}
