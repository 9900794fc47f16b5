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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/looplab/fsm"
)

// LinkState is the state of the network link.
type LinkState string

// link states
const (
	LinkIdle       LinkState = "idle"
	LinkStarting   LinkState = "starting"
	LinkConnecting LinkState = "connecting"
	LinkConnected  LinkState = "connected" // associated, no address yet
	LinkReady      LinkState = "ready"
	LinkFailed     LinkState = "failed"
)

// EventKind enumerates the notifications raised by a Transport.
type EventKind int

// link events
const (
	EventStationStarted  EventKind = iota // station interface is up
	EventAssociated                       // joined the access point
	EventDisconnected                     // association lost or refused
	EventAddressAcquired                  // IP address assigned
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventStationStarted:
		return "station-started"
	case EventAssociated:
		return "associated"
	case EventDisconnected:
		return "disconnected"
	case EventAddressAcquired:
		return "address-acquired"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// LinkEvent is a transport notification with its payload.
type LinkEvent struct {
	Kind   EventKind
	Addr   netip.Addr // EventAddressAcquired
	Reason string     // EventDisconnected
}

// EventSink receives link events from a Transport.
type EventSink interface {
	OnEvent(ev LinkEvent)
}

// Transport is the link layer driven by the Supervisor. Start brings up
// the station and must eventually raise EventStationStarted. Connect
// requests an association; it must return immediately and report the
// result through the sink.
type Transport interface {
	Start(sink EventSink) error
	Connect() error
}

// Outcome is the result of a link attempt sequence.
type Outcome int

// link outcomes
const (
	OutcomePending Outcome = iota
	OutcomeConnected
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeConnected:
		return "connected"
	case OutcomeFailed:
		return "failed"
	}
	return "pending"
}

// state machine events
const (
	evStart    = "start"
	evStation  = "station"
	evAssoc    = "associate"
	evRetry    = "retry"
	evFail     = "fail"
	evAcquired = "acquire"
)

// ErrStarted is returned when Start is called more than once.
var ErrStarted = errors.New("link supervisor already started")

// Supervisor runs the link state machine. Transport events may arrive
// on any goroutine; handling never blocks beyond issuing a connect
// request. Exactly one Outcome is signaled per Supervisor.
type Supervisor struct {
	mu        sync.Mutex
	machine   *fsm.FSM
	transport Transport
	policy    RetryPolicy
	retries   int
	addr      netip.Addr

	once    sync.Once
	done    chan struct{}
	outcome Outcome

	logger *slog.Logger
	obs    Observer
}

// NewSupervisor creates an idle link supervisor for transport.
func NewSupervisor(transport Transport, policy RetryPolicy, logger *slog.Logger, obs Observer) *Supervisor {
	s := &Supervisor{
		transport: transport,
		policy:    policy,
		done:      make(chan struct{}),
		logger:    orDiscard(logger),
		obs:       orNop(obs),
	}
	connecting := []string{string(LinkConnecting), string(LinkConnected)}
	s.machine = fsm.NewFSM(
		string(LinkIdle),
		fsm.Events{
			{Name: evStart, Src: []string{string(LinkIdle)}, Dst: string(LinkStarting)},
			{Name: evStation, Src: []string{string(LinkStarting), string(LinkConnecting)}, Dst: string(LinkConnecting)},
			{Name: evAssoc, Src: []string{string(LinkConnecting)}, Dst: string(LinkConnected)},
			{Name: evRetry, Src: append(connecting, string(LinkReady)), Dst: string(LinkConnecting)},
			{Name: evFail, Src: connecting, Dst: string(LinkFailed)},
			{Name: evAcquired, Src: append(connecting, string(LinkStarting)), Dst: string(LinkReady)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debug("link state", slog.String("from", e.Src), slog.String("to", e.Dst), slog.Int("retries", s.retries))
			},
			"enter_" + string(LinkReady): func(_ context.Context, _ *fsm.Event) {
				s.logger.Info("link ready", slog.String("ip", s.addr.String()))
				s.signal(OutcomeConnected)
			},
			"enter_" + string(LinkFailed): func(_ context.Context, _ *fsm.Event) {
				s.logger.Error("link failed", slog.Int("retries", s.retries))
				s.signal(OutcomeFailed)
			},
		},
	)
	return s
}

// Start leaves Idle and brings up the station. The first connect request
// is issued when the transport reports EventStationStarted.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	ok := s.fire(evStart)
	s.mu.Unlock()
	if !ok {
		return ErrStarted
	}
	if err := s.transport.Start(s); err != nil {
		return fmt.Errorf("start station: %w", err)
	}
	return nil
}

// OnEvent advances the state machine. Events that do not apply to the
// current state are ignored.
func (s *Supervisor) OnEvent(ev LinkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case EventStationStarted:
		if s.fire(evStation) {
			s.connect()
		}
	case EventAssociated:
		s.fire(evAssoc)
	case EventDisconnected:
		if !s.machine.Can(evRetry) {
			s.ignore(ev)
			return
		}
		s.logger.Info("connect to the AP failed", slog.String("reason", ev.Reason), slog.Int("retries", s.retries))
		if !s.policy.ShouldRetry(s.retries) {
			s.fire(evFail)
			return
		}
		s.retries = s.policy.OnAttempt(s.retries)
		if s.fire(evRetry) {
			s.logger.Info("retry to connect to the AP", slog.Int("attempt", s.retries))
			s.connect()
		}
	case EventAddressAcquired:
		if !s.machine.Can(evAcquired) {
			s.ignore(ev)
			return
		}
		s.retries = 0
		s.addr = ev.Addr
		s.fire(evAcquired)
	default:
		s.ignore(ev)
	}
}

// Wait blocks until the link is ready or has failed and returns which.
// There is no timeout.
func (s *Supervisor) Wait() Outcome {
	<-s.done
	return s.outcome
}

// State returns the current link state.
func (s *Supervisor) State() LinkState {
	return LinkState(s.machine.Current())
}

// Retries returns the reconnect attempts since the last ready state.
func (s *Supervisor) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// Addr returns the last acquired address.
func (s *Supervisor) Addr() netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// fire sends event to the state machine. A self-transition counts as
// success. Must be called with s.mu held.
func (s *Supervisor) fire(event string) bool {
	err := s.machine.Event(context.Background(), event)
	var same fsm.NoTransitionError
	if err == nil || errors.As(err, &same) {
		s.obs.LinkState(LinkState(s.machine.Current()), s.retries)
		return true
	}
	s.logger.Debug("link event rejected", slog.String("event", event), slog.String("state", s.machine.Current()), slog.String("err", err.Error()))
	return false
}

func (s *Supervisor) ignore(ev LinkEvent) {
	s.logger.Debug("link event ignored", slog.String("event", ev.Kind.String()), slog.String("state", s.machine.Current()))
}

func (s *Supervisor) connect() {
	if err := s.transport.Connect(); err != nil {
		s.logger.Warn("connect request failed", slog.String("err", err.Error()))
	}
}

// signal records the first outcome and releases waiters; later calls
// are no-ops.
func (s *Supervisor) signal(o Outcome) {
	fired := false
	s.once.Do(func() {
		s.outcome = o
		close(s.done)
		fired = true
	})
	if !fired {
		s.logger.Debug("link outcome unchanged", slog.String("outcome", s.outcome.String()), slog.String("ignored", o.String()))
	}
}
