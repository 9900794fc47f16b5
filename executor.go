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
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
)

// executor defaults
const (
	DefaultPollBudget = 100 * time.Millisecond // wait for data per spin
	DefaultYield      = 10 * time.Millisecond  // pause between spins
)

// default channel names
const (
	ChannelControl = "led_control" // boolean on/off
	ChannelCommand = "led_command" // text command
	ChannelBlink   = "led_blink"   // integer blink count
	ChannelStatus  = "led_status"  // boolean telemetry
)

var errNoSubscriptions = errors.New("no subscriptions")

// Handler acts on the value last decoded into its subscription buffer.
type Handler func()

// Subscription binds an inbound channel to its own decode buffer and a
// handler.
type Subscription struct {
	Channel string
	Buffer  Decoder
	Handler Handler

	inbox Inbox
}

// ExecutorConfig parameterizes the dispatch loop.
type ExecutorConfig struct {
	Telemetry  string        // outbound channel for actuator state
	PollBudget time.Duration // wait for data per spin
	Yield      time.Duration // pause between spins
}

// Executor is a single-threaded polling loop over a fixed set of
// subscriptions. Handlers run one at a time in registration order; a
// telemetry publish of the actuator state follows every handler call.
// A blinking handler holds up all other channels until it returns.
type Executor struct {
	subs      []Subscription
	messenger Messenger
	actuator  *Actuator
	cfg       ExecutorConfig
	logger    *slog.Logger
	obs       Observer
}

// NewExecutor subscribes every channel in subs on m. The subscription
// set cannot change afterwards.
func NewExecutor(m Messenger, act *Actuator, cfg ExecutorConfig, logger *slog.Logger, obs Observer, subs ...Subscription) (*Executor, error) {
	if len(subs) == 0 {
		return nil, errNoSubscriptions
	}
	if cfg.Telemetry == "" {
		cfg.Telemetry = ChannelStatus
	}
	if cfg.PollBudget <= 0 {
		cfg.PollBudget = DefaultPollBudget
	}
	if cfg.Yield < 0 {
		cfg.Yield = 0
	}
	e := &Executor{
		subs:      make([]Subscription, len(subs)),
		messenger: m,
		actuator:  act,
		cfg:       cfg,
		logger:    orDiscard(logger),
		obs:       orNop(obs),
	}
	for i, sub := range subs {
		if sub.Buffer == nil || sub.Handler == nil {
			return nil, fmt.Errorf("subscription %q: missing buffer or handler", sub.Channel)
		}
		inbox, err := m.Subscribe(sub.Channel)
		if err != nil {
			return nil, fmt.Errorf("subscribe %q: %w", sub.Channel, err)
		}
		sub.inbox = inbox
		e.subs[i] = sub
	}
	e.logger.Info("executor initialized", slog.Int("subscriptions", len(e.subs)), slog.String("telemetry", cfg.Telemetry))
	return e, nil
}

// Run publishes the initial state and spins forever.
func (e *Executor) Run() {
	e.PublishState()
	for {
		e.Spin(e.cfg.PollBudget)
		time.Sleep(e.cfg.Yield)
	}
}

// Spin checks every subscription once and dispatches pending data. If
// nothing is pending it waits up to budget for new data and checks
// once more. It returns the number of handler invocations.
func (e *Executor) Spin(budget time.Duration) int {
	if n := e.dispatch(); n > 0 {
		return n
	}
	timer := time.NewTimer(budget)
	defer timer.Stop()
	select {
	case <-e.messenger.Notify():
		return e.dispatch()
	case <-timer.C:
		return 0
	}
}

// dispatch takes at most one payload per subscription, in order.
func (e *Executor) dispatch() (n int) {
	for i := range e.subs {
		sub := &e.subs[i]
		payload, ok := sub.inbox.Receive()
		if !ok {
			continue
		}
		if err := sub.Buffer.Decode(payload); err != nil {
			e.obs.Dropped(sub.Channel)
			e.logger.Warn("dropping payload", slog.String("channel", sub.Channel), slog.String("err", err.Error()))
			continue
		}
		sub.Handler()
		e.obs.Dispatched(sub.Channel)
		e.PublishState()
		n++
	}
	return
}

// PublishState sends the actuator state on the telemetry channel.
// Failures are logged and otherwise ignored.
func (e *Executor) PublishState() {
	payload, err := json.Marshal(e.actuator.State())
	if err == nil {
		err = e.messenger.Publish(e.cfg.Telemetry, payload)
	}
	e.obs.Published(err)
	if err != nil {
		e.logger.Debug("telemetry publish failed", slog.String("err", err.Error()))
	}
}

//----------------------------------------------------------------------

// Topics names the channels of the LED controller.
type Topics struct {
	Control string `yaml:"control"`
	Command string `yaml:"command"`
	Blink   string `yaml:"blink"`
	Status  string `yaml:"status"`
}

// DefaultTopics returns the standard channel names.
func DefaultTopics() Topics {
	return Topics{
		Control: ChannelControl,
		Command: ChannelCommand,
		Blink:   ChannelBlink,
		Status:  ChannelStatus,
	}
}

// StandardSubscriptions builds the boolean, text and integer command
// subscriptions (in that order) acting on act.
func StandardSubscriptions(act *Actuator, topics Topics, textCapacity int, interval time.Duration, logger *slog.Logger) []Subscription {
	logger = orDiscard(logger)
	if interval <= 0 {
		interval = DefaultBlinkInterval
	}
	control := new(BoolBuffer)
	text := NewTextBuffer(textCapacity)
	blink := new(IntBuffer)
	return []Subscription{
		{
			Channel: topics.Control,
			Buffer:  control,
			Handler: func() {
				if control.Value {
					act.On()
				} else {
					act.Off()
				}
			},
		},
		{
			Channel: topics.Command,
			Buffer:  text,
			Handler: func() {
				logger.Info("received command", slog.String("text", text.String()))
				RunCommand(act, ParseCommand(text.String()), interval, logger)
			},
		},
		{
			Channel: topics.Blink,
			Buffer:  blink,
			Handler: func() {
				n := ClampBlinks(int(blink.Value))
				logger.Info("blink command received", slog.Int("times", n))
				act.Blink(n, interval)
			},
		},
	}
}

// RunCommand applies a parsed text command. Unknown commands are logged
// and ignored.
func RunCommand(act *Actuator, cmd Command, interval time.Duration, logger *slog.Logger) {
	logger = orDiscard(logger)
	switch cmd.Kind {
	case CmdOn:
		act.On()
	case CmdOff:
		act.Off()
	case CmdToggle:
		act.Toggle()
	case CmdBlink:
		act.Blink(cmd.Count, interval)
	case CmdStatus:
		logger.Info("LED status", slog.Bool("on", act.State()))
	default:
		logger.Warn("unknown command", slog.String("text", cmd.Text))
	}
}
