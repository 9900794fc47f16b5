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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync/atomic"
	"time"
)

// LinuxDevice (for testing purposes) records the LED level.
type LinuxDevice struct {
	led    atomic.Bool
	logger *slog.Logger
}

// LED on or off (logged at debug level)
func (dev *LinuxDevice) LED(on bool) {
	dev.led.Store(on)
	dev.logger.Debug("LED", slog.Bool("on", on))
}

// Level returns the last LED level set.
func (dev *LinuxDevice) Level() bool {
	return dev.led.Load()
}

// InitDevice returns the host device.
func InitDevice(logger *slog.Logger) *LinuxDevice {
	return &LinuxDevice{logger: orDiscard(logger)}
}

// SetupListener returns a TCP listener on the given port.
func (dev *LinuxDevice) SetupListener(port uint16) (lst net.Listener, state int) {
	ctx := context.Background()
	cfg := new(net.ListenConfig)
	lis, err := cfg.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, StatLISTEN1
	}
	return lis, StatOK
}

//----------------------------------------------------------------------

var errNoAddress = errors.New("no usable address")

// HostTransport maps the host network configuration onto link events:
// a connect request succeeds once the selected interface carries a
// global unicast IPv4 address.
type HostTransport struct {
	iface  string        // interface name (empty: any)
	delay  time.Duration // wait before checking
	addrs  func(iface string) ([]netip.Addr, error)
	sink   atomic.Pointer[EventSink]
	logger *slog.Logger
}

// NewHostTransport creates a transport watching iface.
func NewHostTransport(iface string, delay time.Duration, logger *slog.Logger) *HostTransport {
	return &HostTransport{
		iface:  iface,
		delay:  delay,
		addrs:  interfaceAddrs,
		logger: orDiscard(logger),
	}
}

// Start implements Transport: the station is always up on a host.
func (t *HostTransport) Start(sink EventSink) error {
	t.sink.Store(&sink)
	go t.emit(LinkEvent{Kind: EventStationStarted})
	return nil
}

// Connect implements Transport.
func (t *HostTransport) Connect() error {
	if t.sink.Load() == nil {
		return errors.New("transport not started")
	}
	go func() {
		time.Sleep(t.delay)
		addr, err := t.address()
		if err != nil {
			t.emit(LinkEvent{Kind: EventDisconnected, Reason: err.Error()})
			return
		}
		t.emit(LinkEvent{Kind: EventAssociated})
		t.emit(LinkEvent{Kind: EventAddressAcquired, Addr: addr})
	}()
	return nil
}

func (t *HostTransport) address() (netip.Addr, error) {
	list, err := t.addrs(t.iface)
	if err != nil {
		return netip.Addr{}, err
	}
	for _, a := range list {
		if a.Is4() && a.IsGlobalUnicast() {
			return a, nil
		}
	}
	return netip.Addr{}, errNoAddress
}

func (t *HostTransport) emit(ev LinkEvent) {
	t.logger.Debug("link event", slog.String("event", ev.Kind.String()))
	(*t.sink.Load()).OnEvent(ev)
}

// interfaceAddrs lists the addresses of the named interface (all
// interfaces that are up if name is empty).
func interfaceAddrs(name string) ([]netip.Addr, error) {
	var ifaces []net.Interface
	if name != "" {
		ifc, err := net.InterfaceByName(name)
		if err != nil {
			return nil, err
		}
		ifaces = append(ifaces, *ifc)
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return nil, err
		}
		ifaces = all
	}
	var out []netip.Addr
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if pfx, err := netip.ParsePrefix(a.String()); err == nil {
				out = append(out, pfx.Addr())
			}
		}
	}
	return out, nil
}
