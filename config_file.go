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
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the configuration like ReadConfig and validates the
// result.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig reads a YAML file over the defaults and applies LEDLINK_*
// environment overrides. An empty path skips the file. The result is
// not validated.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := ApplyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides sets fields from environment variables looked up
// with lookup.
func ApplyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"LEDLINK_SSID":         &cfg.SSID,
		"LEDLINK_PASSWORD":     &cfg.Password,
		"LEDLINK_PEER_ADDRESS": &cfg.PeerAddress,
		"LEDLINK_MESSENGER":    &cfg.Messenger,
		"LEDLINK_CLIENT_ID":    &cfg.ClientID,
		"LEDLINK_METRICS_ADDR": &cfg.MetricsAddr,
		"LEDLINK_LOG_LEVEL":    &cfg.Log.Level,
	}
	for key, field := range str {
		if v, ok := lookup(key); ok {
			*field = v
		}
	}
	if v, ok := lookup("LEDLINK_PEER_PORT"); ok {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("LEDLINK_PEER_PORT: %w", err)
		}
		cfg.PeerPort = uint16(port)
	}
	return nil
}
