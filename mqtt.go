//go:build !rp2350

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
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultMQTTTimeout bounds broker round trips (connect, subscribe,
// publish hand-off).
const DefaultMQTTTimeout = 2 * time.Second

var errMQTTTimeout = errors.New("mqtt: timeout")

// mqttClient is the part of mqtt.Client used by the messenger.
type mqttClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// DialMQTTMessenger connects to the broker at ep and returns a messenger
// on that connection. Subscriptions are renewed on every reconnect.
func DialMQTTMessenger(ep Endpoint, clientID, prefix string, depth int, timeout time.Duration, logger *slog.Logger) (*MQTTMessenger, error) {
	m := NewMQTTMessenger(nil, prefix, depth, timeout, logger)
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + ep.String())
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(m.timeout)
	opts.SetOnConnectHandler(m.OnConnect)
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		m.logger.Warn("MQTT connection lost", slog.String("err", err.Error()))
	})

	client := mqtt.NewClient(opts)
	m.client = client
	token := client.Connect()
	if !token.WaitTimeout(m.timeout) {
		return nil, fmt.Errorf("connect %s: %w", ep, errMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", ep, err)
	}
	return m, nil
}

// MQTTMessenger maps channels to MQTT topics. Publishing is QoS 0.
type MQTTMessenger struct {
	*postOffice
	client  mqttClient
	prefix  string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	topics map[string]string // topic -> channel
}

// NewMQTTMessenger uses client for all channels. Topics are the channel
// names, below prefix if one is given.
func NewMQTTMessenger(client mqttClient, prefix string, depth int, timeout time.Duration, logger *slog.Logger) *MQTTMessenger {
	if timeout <= 0 {
		timeout = DefaultMQTTTimeout
	}
	return &MQTTMessenger{
		postOffice: newPostOffice(depth),
		client:     client,
		prefix:     prefix,
		timeout:    timeout,
		logger:     orDiscard(logger),
		topics:     make(map[string]string),
	}
}

// Topic returns the MQTT topic of channel.
func (m *MQTTMessenger) Topic(channel string) string {
	if m.prefix == "" {
		return channel
	}
	return m.prefix + "/" + channel
}

// Subscribe implements Messenger.
func (m *MQTTMessenger) Subscribe(channel string) (Inbox, error) {
	box := m.open(channel)
	topic := m.Topic(channel)
	token := m.client.Subscribe(topic, 0, m.handler(channel))
	if !token.WaitTimeout(m.timeout) {
		return nil, fmt.Errorf("subscribe %s: %w", topic, errMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	m.mu.Lock()
	m.topics[topic] = channel
	m.mu.Unlock()
	m.logger.Info("subscribed", slog.String("topic", topic))
	return box, nil
}

// OnConnect renews all subscriptions on c. It is the connect handler of
// the client: a clean session forgets subscriptions across reconnects.
func (m *MQTTMessenger) OnConnect(c mqtt.Client) {
	m.logger.Info("connected to MQTT broker")
	m.resubscribe(c)
}

func (m *MQTTMessenger) resubscribe(c mqttClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for topic, channel := range m.topics {
		token := c.Subscribe(topic, 0, m.handler(channel))
		// the handler must not block the client
		go func() {
			if !token.WaitTimeout(m.timeout) {
				m.logger.Warn("resubscribe timed out", slog.String("topic", topic))
			} else if err := token.Error(); err != nil {
				m.logger.Warn("resubscribe failed", slog.String("topic", topic), slog.String("err", err.Error()))
			}
		}()
		m.logger.Info("resubscribed", slog.String("topic", topic))
	}
}

func (m *MQTTMessenger) handler(channel string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		m.deliver(channel, msg.Payload())
	}
}

// Publish implements Messenger.
func (m *MQTTMessenger) Publish(channel string, payload []byte) error {
	token := m.client.Publish(m.Topic(channel), 0, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return errMQTTTimeout
	}
	return token.Error()
}
