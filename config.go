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
	"strings"
	"time"
)

// messenger kinds
const (
	MessengerMQTT   = "mqtt"
	MessengerStream = "stream"
)

// auth thresholds accepted for the access point
var authThresholds = []string{"open", "wpa", "wpa2", "wpa3"}

// ProbeConfig controls agent discovery.
type ProbeConfig struct {
	Timeout     time.Duration `yaml:"timeout"`      // per probe attempt
	Attempts    int           `yaml:"attempts"`     // attempts per probe
	Interval    time.Duration `yaml:"interval"`     // pause between probes
	MDNSService string        `yaml:"mdns_service"` // browsed if peer_address is empty
}

// Config holds the settings of the link supervisor and control loop.
type Config struct {
	SSID          string `yaml:"ssid"`
	Password      string `yaml:"password"`
	AuthThreshold string `yaml:"auth_threshold"`
	Hostname      string `yaml:"hostname"`     // DHCP requested hostname
	RequestedIP   string `yaml:"requested_ip"` // DHCP requested (or static) address
	Interface     string `yaml:"interface"`    // host network interface (empty: any)

	PeerAddress  string        `yaml:"peer_address"`
	PeerPort     uint16        `yaml:"peer_port"`
	RetryCeiling int           `yaml:"retry_ceiling"`
	RetryDelay   time.Duration `yaml:"retry_delay"` // pause before a host reconnect
	PollInterval time.Duration `yaml:"poll_interval"`
	Yield        time.Duration `yaml:"yield"`
	Probe        ProbeConfig   `yaml:"probe"`

	BlinkInterval time.Duration `yaml:"blink_interval"`
	TextCapacity  int           `yaml:"text_capacity"`
	QueueDepth    int           `yaml:"queue_depth"`
	Topics        Topics        `yaml:"topics"`
	TopicPrefix   string        `yaml:"topic_prefix"`

	Messenger  string        `yaml:"messenger"` // mqtt or stream
	ClientID   string        `yaml:"client_id"`
	ListenPort uint16        `yaml:"listen_port"` // stream messenger
	StatusPort uint16        `yaml:"status_port"` // 9P status namespace (0: off)
	Breaker    BreakerConfig `yaml:"breaker"`

	MetricsAddr string    `yaml:"metrics_addr"`
	Log         LogConfig `yaml:"log"`
}

// DefaultConfig returns the stock settings.
func DefaultConfig() *Config {
	return &Config{
		AuthThreshold: "wpa2",
		Hostname:      "ledlink",
		PeerPort:      8888,
		RetryCeiling:  DefaultRetryCeiling,
		RetryDelay:    time.Second,
		PollInterval:  DefaultPollBudget,
		Yield:         DefaultYield,
		Probe: ProbeConfig{
			Timeout:  DefaultProbeTimeout,
			Attempts: DefaultProbeAttempts,
			Interval: DefaultProbeInterval,
		},
		BlinkInterval: DefaultBlinkInterval,
		TextCapacity:  DefaultTextCapacity,
		QueueDepth:    DefaultQueueDepth,
		Topics:        DefaultTopics(),
		Messenger:     MessengerMQTT,
		ClientID:      "esp32_led_controller",
		ListenPort:    8889,
		StatusPort:    564,
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// Peer returns the configured agent endpoint.
func (c *Config) Peer() Endpoint {
	return Endpoint{Host: c.PeerAddress, Port: c.PeerPort}
}

// ExecutorConfig returns the dispatch loop settings.
func (c *Config) ExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Telemetry:  c.Topics.Status,
		PollBudget: c.PollInterval,
		Yield:      c.Yield,
	}
}

//----------------------------------------------------------------------

// ValidationError collects all configuration problems.
type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Error() string {
	return "invalid config: " + strings.Join(v.Problems, "; ")
}

// Add records a problem.
func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

// Validate checks the settings and returns a *ValidationError listing
// every problem found.
func (c *Config) Validate() error {
	ve := new(ValidationError)
	auth := strings.ToLower(c.AuthThreshold)
	known := false
	for _, a := range authThresholds {
		known = known || a == auth
	}
	if !known {
		ve.Add("auth_threshold %q: want one of %s", c.AuthThreshold, strings.Join(authThresholds, ", "))
	} else if auth != "open" && c.Password == "" && c.SSID != "" {
		ve.Add("password required for auth_threshold %q", c.AuthThreshold)
	}
	if c.PeerAddress != "" && c.PeerPort == 0 {
		ve.Add("peer_port required with peer_address")
	}
	if c.RetryCeiling < 0 {
		ve.Add("retry_ceiling must not be negative")
	}
	if c.PollInterval <= 0 {
		ve.Add("poll_interval must be positive")
	}
	if c.Yield < 0 {
		ve.Add("yield must not be negative")
	}
	if c.Probe.Attempts <= 0 {
		ve.Add("probe.attempts must be positive")
	}
	if c.Probe.Timeout <= 0 || c.Probe.Interval <= 0 {
		ve.Add("probe.timeout and probe.interval must be positive")
	}
	if c.BlinkInterval <= 0 {
		ve.Add("blink_interval must be positive")
	}
	if c.TextCapacity <= 0 {
		ve.Add("text_capacity must be positive")
	}
	t := c.Topics
	if t.Control == "" || t.Command == "" || t.Blink == "" || t.Status == "" {
		ve.Add("all topics must be named")
	}
	switch c.Messenger {
	case MessengerMQTT:
		if c.ClientID == "" {
			ve.Add("client_id required for the mqtt messenger")
		}
	case MessengerStream:
		if c.ListenPort == 0 {
			ve.Add("listen_port required for the stream messenger")
		}
	default:
		ve.Add("messenger %q: want %s or %s", c.Messenger, MessengerMQTT, MessengerStream)
	}
	if len(ve.Problems) > 0 {
		return ve
	}
	return nil
}
