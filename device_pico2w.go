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

package ledlink

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/eth/dns"
	"github.com/soypat/seqs/stacks"
)

const mtu = cyw43439.MTU

// DHCP polling: 15 rounds of 500ms before falling back to a static IP.
const (
	dhcpRounds = 15
	dhcpPause  = time.Second / 2
)

// Error messages
var (
	errInvalidIP = errors.New("invalid ip")
	errNoDHCP    = errors.New("no DHCP reply")
	errNoStack   = errors.New("network stack not up")
)

// PicoConfig holds the network settings of the device.
type PicoConfig struct {
	// DHCP requested hostname.
	Hostname string
	// DHCP requested IP address. On failing to find DHCP server is used as static IP.
	RequestedIP string
	// Number of UDP ports to open for the stack (one more is opened for DHCP).
	UDPPorts uint16
	// Number of TCP ports to open for the stack.
	TCPPorts uint16

	SSID   string
	Passwd string
}

// Raspberry Pico2 W  [RP2350]
type Pico2WDevice struct {
	ref    *cyw43439.Device // reference to device
	stack  *stacks.PortStack
	dhcp   *stacks.DHCPClient
	logger *slog.Logger
}

// LED on or off (if applicable)
func (dev *Pico2WDevice) LED(on bool) {
	dev.ref.GPIOSet(0, on)
}

// InitDevice accesses the on-board chip.
func InitDevice(logger *slog.Logger) *Pico2WDevice {
	return &Pico2WDevice{
		ref:    cyw43439.NewPicoWDevice(),
		logger: orDiscard(logger),
	}
}

// SetupListener returns a TCP listener on the given port. The link must
// be ready.
func (dev *Pico2WDevice) SetupListener(port uint16) (lst net.Listener, state int) {
	if dev.stack == nil {
		return nil, StatLISTEN1
	}
	listener, err := stacks.NewTCPListener(dev.stack, stacks.TCPListenerConfig{
		MaxConnections: 3,
		ConnTxBufSize:  512,
		ConnRxBufSize:  512,
	})
	if err != nil {
		return nil, StatLISTEN1
	}
	if listener.StartListening(port) != nil {
		return nil, StatLISTEN2
	}
	return listener, StatOK
}

//----------------------------------------------------------------------

// PicoTransport drives the WiFi chip and the DHCP client and reports
// their progress as link events.
type PicoTransport struct {
	dev     *Pico2WDevice
	cfg     PicoConfig
	reqAddr netip.Addr
	status  *Status
	sink    EventSink
	connect chan struct{}
}

// Transport returns the link transport of the device. Failures are
// also recorded in status.
func (dev *Pico2WDevice) Transport(cfg PicoConfig, status *Status) *PicoTransport {
	return &PicoTransport{
		dev:     dev,
		cfg:     cfg,
		status:  status,
		connect: make(chan struct{}, 1),
	}
}

// Start implements Transport: initialize the chip and raise
// EventStationStarted.
func (t *PicoTransport) Start(sink EventSink) (err error) {
	logger := t.dev.logger
	if t.cfg.RequestedIP != "" {
		if t.reqAddr, err = netip.ParseAddr(t.cfg.RequestedIP); err != nil {
			t.status.Set(StatIP, 0)
			return err
		}
	}
	wificfg := cyw43439.DefaultWifiConfig()
	wificfg.Logger = logger
	logger.Info("initializing pico W device...")
	devInitTime := time.Now()
	if err = t.dev.ref.Init(wificfg); err != nil {
		t.status.Set(StatWIFI, 0)
		return err
	}
	logger.Info("cyw43439:Init", slog.Duration("duration", time.Since(devInitTime)))
	t.sink = sink
	go t.run()
	return nil
}

// Connect implements Transport: queue a join request.
func (t *PicoTransport) Connect() error {
	select {
	case t.connect <- struct{}{}:
	default:
	}
	return nil
}

func (t *PicoTransport) run() {
	t.sink.OnEvent(LinkEvent{Kind: EventStationStarted})
	for range t.connect {
		if err := t.join(); err != nil {
			t.sink.OnEvent(LinkEvent{Kind: EventDisconnected, Reason: err.Error()})
			continue
		}
		t.sink.OnEvent(LinkEvent{Kind: EventAssociated})
		addr, err := t.lease()
		if err != nil {
			t.sink.OnEvent(LinkEvent{Kind: EventDisconnected, Reason: err.Error()})
			continue
		}
		t.status.Set(StatOK, 0)
		t.sink.OnEvent(LinkEvent{Kind: EventAddressAcquired, Addr: addr})
	}
}

// join the access point and bring up the network stack.
func (t *PicoTransport) join() error {
	logger := t.dev.logger
	if len(t.cfg.Passwd) == 0 {
		logger.Info("joining open network:", slog.String("ssid", t.cfg.SSID))
	} else {
		logger.Info("joining WPA secure network", slog.String("ssid", t.cfg.SSID), slog.Int("passlen", len(t.cfg.Passwd)))
	}
	if err := t.dev.ref.JoinWPA2(t.cfg.SSID, t.cfg.Passwd); err != nil {
		t.status.Set(StatWPA2, 0)
		return err
	}
	mac, _ := t.dev.ref.HardwareAddr6()
	logger.Info("wifi join success!", slog.String("mac", net.HardwareAddr(mac[:]).String()))
	if t.dev.stack == nil {
		stack := stacks.NewPortStack(stacks.PortStackConfig{
			MAC:             mac,
			MaxOpenPortsUDP: int(t.cfg.UDPPorts) + 1,
			MaxOpenPortsTCP: int(t.cfg.TCPPorts),
			MTU:             mtu,
			Logger:          logger,
		})
		t.dev.ref.RecvEthHandle(stack.RecvEth)
		// Begin asynchronous packet handling.
		go nicLoop(t.dev.ref, stack)
		t.dev.stack = stack
		t.dev.dhcp = stacks.NewDHCPClient(stack, dhcp.DefaultClientPort)
	}
	return nil
}

// lease an address via DHCP; falls back to the requested address.
func (t *PicoTransport) lease() (netip.Addr, error) {
	logger := t.dev.logger
	client := t.dev.dhcp
	err := client.BeginRequest(stacks.DHCPRequestConfig{
		RequestedAddr: t.reqAddr,
		Xid:           uint32(time.Now().Nanosecond()),
		Hostname:      t.cfg.Hostname,
	})
	if err != nil {
		t.status.Set(StatDHCP1, 0)
		return netip.Addr{}, fmt.Errorf("dhcp request: %w", err)
	}
	for i := 0; client.State() != dhcp.StateBound; i++ {
		logger.Info("DHCP ongoing...")
		time.Sleep(dhcpPause)
		if i >= dhcpRounds {
			if !t.reqAddr.IsValid() {
				t.status.Set(StatDHCP2, 0)
				return netip.Addr{}, errNoDHCP
			}
			logger.Info("DHCP did not complete, assigning static IP", slog.String("ip", t.cfg.RequestedIP))
			t.dev.stack.SetAddr(t.reqAddr)
			return t.reqAddr, nil
		}
	}
	ip := client.Offer()
	logger.Info("DHCP complete",
		slog.Uint64("cidrbits", uint64(client.CIDRBits())),
		slog.String("ourIP", ip.String()),
		slog.String("gateway", client.Gateway().String()),
		slog.String("router", client.Router().String()),
		slog.String("dhcp", client.DHCPServer().String()),
		slog.Duration("lease", client.IPLeaseTime()),
	)
	t.dev.stack.SetAddr(ip) // It's important to set the IP address after DHCP completes.
	return ip, nil
}

//----------------------------------------------------------------------

// ResolveHardwareAddr obtains the hardware address of the given IP
// address, waiting at most timeout.
func ResolveHardwareAddr(stack *stacks.PortStack, ip netip.Addr, timeout time.Duration) ([6]byte, error) {
	if !ip.IsValid() {
		return [6]byte{}, errInvalidIP
	}
	arpc := stack.ARP()
	arpc.Abort() // Remove any previous ARP requests.
	err := arpc.BeginResolve(ip)
	if err != nil {
		return [6]byte{}, err
	}
	time.Sleep(4 * time.Millisecond)
	const maxretries = 20
	retries := maxretries
	for !arpc.IsDone() && retries > 0 {
		retries--
		if retries == 0 {
			return [6]byte{}, errors.New("arp timed out")
		}
		time.Sleep(timeout / maxretries)
	}
	_, hw, err := arpc.ResultAs6()
	return hw, err
}

// AgentDialer considers the agent reachable once a TCP handshake with
// its port completes.
type AgentDialer struct {
	dev   *Pico2WDevice
	local uint16
}

// Local ports used for handshakes.
const (
	dialPortBase = 49152
	dialPortSpan = 1024
)

// Prober returns the agent prober of the device.
func (dev *Pico2WDevice) Prober() *AgentDialer {
	return &AgentDialer{dev: dev}
}

// Probe implements Prober.
func (p *AgentDialer) Probe(ep Endpoint, timeout time.Duration, attempts int) error {
	if p.dev.stack == nil {
		return errNoStack
	}
	r := agentRoute{
		arp: func(ip netip.Addr) ([6]byte, error) {
			return ResolveHardwareAddr(p.dev.stack, ip, timeout)
		},
		dial: func(hw [6]byte, addr netip.AddrPort) error {
			return p.handshake(hw, addr, timeout)
		},
		router: p.dev.dhcp.Router,
	}
	return r.connect(ep, attempts)
}

// handshake opens a TCP connection and closes it once established.
func (p *AgentDialer) handshake(hw [6]byte, addr netip.AddrPort, timeout time.Duration) error {
	conn, err := stacks.NewTCPConn(p.dev.stack, stacks.TCPConnConfig{
		TxBufSize: 64,
		RxBufSize: 64,
	})
	if err != nil {
		return err
	}
	p.local = (p.local + 1) % dialPortSpan
	iss := seqs.Value(time.Now().UnixNano())
	if err = conn.OpenDialTCP(dialPortBase+p.local, hw, addr, iss); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for conn.State() != seqs.StateEstablished {
		if conn.State() == seqs.StateClosed {
			return fmt.Errorf("%s: connection refused", addr)
		}
		if time.Now().After(deadline) {
			conn.Abort()
			return fmt.Errorf("%s: connect timed out", addr)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn.Close()
}

//----------------------------------------------------------------------

// DNSResolver looks up agent host names with the DNS server obtained
// via DHCP.
type DNSResolver struct {
	dev       *Pico2WDevice
	dns       *stacks.DNSClient
	dnsaddr   netip.Addr
	dnshwaddr [6]byte
}

// Resolver returns the endpoint resolver of the device. The link must
// be ready.
func (dev *Pico2WDevice) Resolver() (*DNSResolver, error) {
	if dev.stack == nil {
		return nil, errNoStack
	}
	dnsaddrs := dev.dhcp.DNSServers()
	if len(dnsaddrs) == 0 || !dnsaddrs[0].IsValid() {
		return nil, errors.New("dns addr obtained via DHCP not valid")
	}
	return &DNSResolver{
		dev:     dev,
		dns:     stacks.NewDNSClient(dev.stack, dns.ClientPort),
		dnsaddr: dnsaddrs[0],
	}, nil
}

// Resolve implements EndpointResolver. Literal addresses are returned
// unchanged.
func (r *DNSResolver) Resolve(ep Endpoint) (Endpoint, error) {
	if _, err := netip.ParseAddr(ep.Host); err == nil {
		return ep, nil
	}
	addrs, err := r.LookupNetIP(ep.Host)
	if err != nil {
		return ep, err
	}
	return Endpoint{Host: addrs[0].String(), Port: ep.Port}, nil
}

// LookupNetIP returns the IPv4 addresses of host.
func (r *DNSResolver) LookupNetIP(host string) ([]netip.Addr, error) {
	name, err := dns.NewName(host)
	if err != nil {
		return nil, err
	}
	if r.dnshwaddr, err = ResolveHardwareAddr(r.dev.stack, r.dnsaddr, time.Second); err != nil {
		return nil, err
	}
	err = r.dns.StartResolve(stacks.DNSResolveConfig{
		Questions: []dns.Question{
			{
				Name:  name,
				Type:  dns.TypeA,
				Class: dns.ClassINET,
			},
		},
		DNSAddr:         r.dnsaddr,
		DNSHWAddr:       r.dnshwaddr,
		EnableRecursion: true,
	})
	if err != nil {
		return nil, err
	}
	time.Sleep(5 * time.Millisecond)
	retries := 100
	for retries > 0 {
		done, _ := r.dns.IsDone()
		if done {
			break
		}
		retries--
		time.Sleep(20 * time.Millisecond)
	}
	done, rcode := r.dns.IsDone()
	if !done && retries == 0 {
		return nil, errors.New("dns lookup timed out")
	} else if rcode != dns.RCodeSuccess {
		return nil, errors.New("dns lookup failed:" + rcode.String())
	}
	var addrs []netip.Addr
	for _, answer := range r.dns.Answers() {
		data := answer.RawData()
		if len(data) == 4 {
			addrs = append(addrs, netip.AddrFrom4([4]byte(data)))
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("no ipv4 dns answers")
	}
	return addrs, nil
}

//----------------------------------------------------------------------

func nicLoop(dev *cyw43439.Device, stack *stacks.PortStack) {
	// Maximum number of packets to queue before sending them.
	const (
		queueSize                = 3
		maxRetriesBeforeDropping = 3
	)
	var queue [queueSize][mtu]byte
	var lenBuf [queueSize]int
	var retries [queueSize]int
	markSent := func(i int) {
		lenBuf[i] = 0
		retries[i] = 0
	}
	for {
		stallRx := true
		// Poll for incoming packets.
		gotPacket, err := dev.PollOne()
		if err != nil {
			println("poll error:", err.Error())
		}
		if gotPacket {
			stallRx = false
		}

		// Queue packets to be sent.
		for i := range queue {
			if retries[i] != 0 {
				continue // Packet currently queued for retransmission.
			}
			lenBuf[i], err = stack.HandleEth(queue[i][:])
			if err != nil {
				println("stack error n(should be 0)=", lenBuf[i], "err=", err.Error())
				lenBuf[i] = 0
				continue
			}
			if lenBuf[i] == 0 {
				break
			}
		}
		if lenBuf == [queueSize]int{} {
			if stallRx {
				// Avoid busy waiting when both Rx and Tx stall.
				time.Sleep(51 * time.Millisecond)
			}
			continue
		}

		// Send queued packets.
		for i := range queue {
			n := lenBuf[i]
			if n <= 0 {
				continue
			}
			if err := dev.SendEth(queue[i][:n]); err != nil {
				// Queue packet for retransmission.
				retries[i]++
				if retries[i] > maxRetriesBeforeDropping {
					markSent(i)
					println("dropped outgoing packet:", err.Error())
				}
			} else {
				markSent(i)
			}
		}
	}
}
