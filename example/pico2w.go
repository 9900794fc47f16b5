//go:build rp2350

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

package main

import (
	"log/slog"
	"machine"
	"strconv"
	"time"

	"github.com/bfix/ledlink"
)

// WiFi credentials, agent endpoint and ports (set via -ldflags -X)
var (
	SSID     string
	Passwd   string
	Host     string
	IP       string
	Peer     string
	PeerPort = "8888"
	Port     = "8889" // stream messenger
	Port9P   = "564"  // status namespace
	Version  = "dev"
)

func parsePort(s string) (uint16, bool) {
	port, err := strconv.ParseUint(s, 10, 16)
	return uint16(port), err == nil && port > 0
}

// run LED controller
func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo}))
	time.Sleep(2 * time.Second)

	// access device
	dev := ledlink.InitDevice(logger)
	state := ledlink.NewStatus(dev)
	defer state.Trap(30 * time.Second)

	cfg := ledlink.DefaultConfig()
	cfg.SSID, cfg.Password, cfg.Hostname, cfg.RequestedIP = SSID, Passwd, Host, IP
	cfg.PeerAddress = Peer
	if Passwd == "" {
		cfg.AuthThreshold = "open"
	}
	cfg.Messenger = ledlink.MessengerStream
	var ok bool
	if cfg.PeerPort, ok = parsePort(PeerPort); !ok {
		state.Set(ledlink.StatPORT, 0)
		return
	}
	if cfg.ListenPort, ok = parsePort(Port); !ok {
		state.Set(ledlink.StatPORT, 0)
		return
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("config", slog.String("err", err.Error()))
		state.Set(ledlink.StatCONF, 0)
		return
	}
	logger.Info("LED controller starting",
		slog.String("ssid", cfg.SSID),
		slog.String("agent", cfg.Peer().String()))

	// bring up the link
	transport := dev.Transport(ledlink.PicoConfig{
		Hostname:    cfg.Hostname,
		RequestedIP: cfg.RequestedIP,
		TCPPorts:    3,
		SSID:        cfg.SSID,
		Passwd:      cfg.Password,
	}, state)
	sup := ledlink.NewSupervisor(transport, ledlink.NewRetryPolicy(cfg.RetryCeiling), logger, nil)
	if err := sup.Start(); err != nil {
		logger.Error("link start", slog.String("err", err.Error()))
		state.Display()
		return
	}
	if sup.Wait() == ledlink.OutcomeFailed {
		state.Set(ledlink.StatLINK, 0)
		state.Display()
		return
	}

	// wait for the agent
	var resolver ledlink.EndpointResolver
	if r, err := dev.Resolver(); err == nil {
		resolver = r
	} else {
		logger.Warn("no name resolution", slog.String("err", err.Error()))
	}
	agent := ledlink.NewAgentLink(dev.Prober(), resolver, cfg.Probe.Interval, logger, nil)
	agent.Discover(cfg.Peer(), cfg.Probe.Timeout, cfg.Probe.Attempts)

	// command stream and status namespace
	lst, stat := dev.SetupListener(cfg.ListenPort)
	if stat != ledlink.StatOK {
		state.Set(stat, 0)
		state.Display()
		return
	}
	stream := ledlink.NewStreamMessenger(lst, cfg.QueueDepth, logger)
	go stream.Serve()
	mirror := ledlink.NewMirror(ledlink.NewBreakerMessenger(stream, cfg.Breaker, logger), cfg.Topics.Status)
	if port, ok := parsePort(Port9P); ok {
		if l9, stat := dev.SetupListener(port); stat == ledlink.StatOK {
			if ns, err := ledlink.StatusNamespace(mirror.File(cfg.Topics.Status), sup, state, Version); err == nil {
				go ns.ServeListener(l9)
			}
		}
	}

	// control loop
	act := ledlink.NewActuator(dev, logger)
	subs := ledlink.StandardSubscriptions(act, cfg.Topics, cfg.TextCapacity, cfg.BlinkInterval, logger)
	exec, err := ledlink.NewExecutor(mirror, act, cfg.ExecutorConfig(), logger, nil, subs...)
	if err != nil {
		logger.Error("executor", slog.String("err", err.Error()))
		state.Set(ledlink.StatMSG, 0)
		state.Display()
		return
	}
	state.Set(ledlink.StatOK, 0)
	exec.Run()

	// nc <ip> 8889
	// led_command "blink 3"
	// led_control true
	// 9p -a tcp!<ip>!564 read /led/status
}
