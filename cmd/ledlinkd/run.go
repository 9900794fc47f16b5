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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/bfix/ledlink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	runConfig    string
	runMessenger string
	runPeer      string
	runLogLevel  string
)

var errLinkFailed = errors.New("link retries exhausted")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bring up the link, wait for the agent and serve LED commands",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := runSettings(cmd.Flags())
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

// runSettings reads the configuration, applies explicitly set flags and
// validates the result.
func runSettings(flags *pflag.FlagSet) (*ledlink.Config, error) {
	cfg, err := ledlink.ReadConfig(runConfig)
	if err != nil {
		return nil, err
	}
	if flags.Changed("messenger") {
		cfg.Messenger = runMessenger
	}
	if flags.Changed("peer") {
		cfg.PeerAddress = runPeer
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = runLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func init() {
	runCmd.Flags().StringVarP(&runConfig, "config", "c", "", "YAML configuration file")
	runCmd.Flags().StringVar(&runMessenger, "messenger", ledlink.MessengerMQTT, "Agent protocol: mqtt or stream")
	runCmd.Flags().StringVar(&runPeer, "peer", "", "Agent host (empty: discover via mDNS)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func run(cfg *ledlink.Config) error {
	logger := ledlink.NewLogger(cfg.Log, os.Stderr)
	dev := ledlink.InitDevice(logger)
	state := ledlink.NewStatus(dev)

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	obs, err := ledlink.NewPromObserver(reg)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics server", slog.String("err", err.Error()))
			}
		}()
	}
	logger.Info("LED controller starting",
		slog.String("version", Version),
		slog.String("agent", cfg.Peer().String()),
		slog.String("messenger", cfg.Messenger))

	// link
	transport := ledlink.NewHostTransport(cfg.Interface, cfg.RetryDelay, logger)
	sup := ledlink.NewSupervisor(transport, ledlink.NewRetryPolicy(cfg.RetryCeiling), logger, obs)
	if err := sup.Start(); err != nil {
		return err
	}
	if sup.Wait() == ledlink.OutcomeFailed {
		state.Set(ledlink.StatLINK, 0)
		return errLinkFailed
	}

	// agent
	resolver := ledlink.NewMDNSResolver(cfg.Probe.MDNSService, logger)
	agent := ledlink.NewAgentLink(ledlink.NewTCPProber(), resolver, cfg.Probe.Interval, logger, obs)
	peer := agent.Discover(cfg.Peer(), cfg.Probe.Timeout, cfg.Probe.Attempts)

	// messenger
	inner, err := dialMessenger(cfg, dev, peer, logger)
	if err != nil {
		state.Set(ledlink.StatMSG, 0)
		return err
	}
	mirror := ledlink.NewMirror(ledlink.NewBreakerMessenger(inner, cfg.Breaker, logger), cfg.Topics.Status)

	// status namespace
	if cfg.StatusPort != 0 {
		ns, err := ledlink.StatusNamespace(mirror.File(cfg.Topics.Status), sup, state, Version)
		if err != nil {
			return err
		}
		go func() {
			if err := ns.Serve(fmt.Sprintf(":%d", cfg.StatusPort)); err != nil {
				logger.Warn("status namespace", slog.String("err", err.Error()))
			}
		}()
	}

	// control loop
	act := ledlink.NewActuator(dev, logger)
	subs := ledlink.StandardSubscriptions(act, cfg.Topics, cfg.TextCapacity, cfg.BlinkInterval, logger)
	exec, err := ledlink.NewExecutor(mirror, act, cfg.ExecutorConfig(), logger, obs, subs...)
	if err != nil {
		state.Set(ledlink.StatMSG, 0)
		return err
	}
	state.Set(ledlink.StatOK, 0)
	exec.Run()
	return nil
}

func dialMessenger(cfg *ledlink.Config, dev *ledlink.LinuxDevice, peer ledlink.Endpoint, logger *slog.Logger) (ledlink.Messenger, error) {
	switch cfg.Messenger {
	case ledlink.MessengerStream:
		lst, stat := dev.SetupListener(cfg.ListenPort)
		if stat != ledlink.StatOK {
			return nil, fmt.Errorf("listen on port %d: %s", cfg.ListenPort, ledlink.StatusText(stat))
		}
		m := ledlink.NewStreamMessenger(lst, cfg.QueueDepth, logger)
		go func() {
			if err := m.Serve(); err != nil {
				logger.Warn("stream messenger stopped", slog.String("err", err.Error()))
			}
		}()
		return m, nil
	default:
		m, err := ledlink.DialMQTTMessenger(peer, cfg.ClientID, cfg.TopicPrefix, cfg.QueueDepth, ledlink.DefaultMQTTTimeout, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}
