// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dhcp runs one DHCPv4 worker per kernel interface that the
// merged desired state marks ipv4.enabled+ipv4.dhcp, reconciling leases
// back through the kernel adapter's ApplyIPs path.
package dhcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv4/nclient4"

	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/metrics"
	"grimm.is/netstated/internal/nmstate"
)

const (
	requestTimeout     = 10 * time.Second
	retryBackoff       = 5 * time.Second
	defaultLeaseTime   = 1 * time.Hour
	minRenewalInterval = 30 * time.Second
)

// knownPhases lists every DhcpState phase for metrics.DHCP.SetState's
// gauge reset, so a transition away from a phase zeroes it out.
var knownPhases = []string{
	nmstate.DhcpWaitLinkCarrier.Phase,
	nmstate.DhcpRunning.Phase,
	nmstate.DhcpDone.Phase,
	"error",
}

// client is the subset of *nclient4.Client a Worker needs, seamed out for
// tests.
type client interface {
	Request(ctx context.Context, modifiers ...dhcpv4.Modifier) (*dhcpv4.DHCPv4, *dhcpv4.DHCPv4, error)
	Close() error
}

func dialClient(base nmstate.BaseInterface) (client, error) {
	opts := []nclient4.ClientOpt{nclient4.WithTimeout(requestTimeout)}
	if base.MacAddress != nil {
		if hw, err := net.ParseMAC(*base.MacAddress); err == nil {
			opts = append(opts, nclient4.WithHWAddr(hw))
		}
	}
	c, err := nclient4.New(base.Name, opts...)
	if err != nil {
		return nil, errs.Wrapf(err, errs.KindBug, "failed to start DHCPv4 client on interface %s", base.Name)
	}
	return c, nil
}

// ApplyFunc hands a lease-derived, IPv4-only interface sub-state back to
// the kernel adapter's ApplyIPs path.
type ApplyFunc func(ctx context.Context, iface nmstate.Interface) error

// Worker owns a DHCPv4 client for exactly one interface and publishes its
// current DhcpState for enrichment of query results. Dropping its handle
// (Stop) closes the quit channel, terminating the worker cooperatively at
// its next wake.
type Worker struct {
	base    nmstate.BaseInterface
	dial    func(nmstate.BaseInterface) (client, error)
	apply   ApplyFunc
	metrics *metrics.DHCP
	log     *logging.Logger

	mu    sync.Mutex
	state nmstate.DhcpState

	quit chan struct{}
	done chan struct{}
}

func newWorker(base nmstate.BaseInterface, apply ApplyFunc, m *metrics.DHCP, log *logging.Logger, dial func(nmstate.BaseInterface) (client, error)) *Worker {
	w := &Worker{
		base:    base,
		dial:    dial,
		apply:   apply,
		metrics: m,
		log:     log.WithComponent("dhcp").With("iface", base.Name),
		state:   nmstate.DhcpWaitLinkCarrier,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// State returns a snapshot of the worker's current DhcpState.
func (w *Worker) State() nmstate.DhcpState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stop signals the worker to quit and waits for its loop to exit.
func (w *Worker) Stop() {
	close(w.quit)
	<-w.done
}

func (w *Worker) setState(s nmstate.DhcpState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.SetState(w.base.Name, knownPhases, s.Phase)
	}
}

// run is the worker's event loop: acquire a lease, apply it, sleep until
// renewal or shutdown, repeat. TODO(dhcp): wait for link carrier before
// the first request instead of transitioning straight to Running; the
// reference daemon this is ported from never implemented it either.
func (w *Worker) run() {
	defer close(w.done)

	c, err := w.dial(w.base)
	if err != nil {
		w.log.Error("failed to start DHCPv4 client", "error", err)
		w.setState(nmstate.DhcpError(err.Error()))
		return
	}
	defer c.Close()

	w.setState(nmstate.DhcpRunning)

	for {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		_, ack, err := c.Request(ctx)
		cancel()

		if err != nil {
			w.log.Warn("DHCPv4 request failed", "error", err)
			w.setState(nmstate.DhcpError(err.Error()))
			if !w.sleep(retryBackoff) {
				return
			}
			continue
		}

		w.log.Info("got DHCPv4 lease", "ip", ack.YourIPAddr)
		w.setState(nmstate.DhcpDone)

		leaseIface := leaseToInterface(w.base.Name, ack)
		if applyErr := w.apply(context.Background(), leaseIface); applyErr != nil {
			w.log.Error("failed to apply DHCPv4 lease", "error", applyErr)
		}

		renewAfter := ack.IPAddressLeaseTime(defaultLeaseTime) / 2
		if renewAfter < minRenewalInterval {
			renewAfter = minRenewalInterval
		}
		if !w.sleep(renewAfter) {
			return
		}
	}
}

// sleep waits for d or the quit signal, reporting false if quit fired.
func (w *Worker) sleep(d time.Duration) bool {
	select {
	case <-w.quit:
		w.log.Info("stopped")
		return false
	case <-time.After(d):
		return true
	}
}

// leaseToInterface synthesizes the IPv4-only sub-state §4.4 describes:
// one static-looking address carrying the lease's valid/preferred
// lifetimes.
func leaseToInterface(ifaceName string, ack *dhcpv4.DHCPv4) nmstate.Interface {
	prefix := uint8(32)
	if mask := ack.SubnetMask(); mask != nil {
		ones, _ := mask.Size()
		prefix = uint8(ones)
	}
	lft := fmt.Sprintf("%ds", int(ack.IPAddressLeaseTime(defaultLeaseTime).Seconds()))
	addr := nmstate.InterfaceIpAddr{
		IP:                append(net.IP(nil), ack.YourIPAddr...),
		PrefixLength:      prefix,
		ValidLifeTime:     &lft,
		PreferredLifeTime: &lft,
	}
	enabled := true
	ipv4 := &nmstate.InterfaceIpv4{Enabled: &enabled, Addresses: []nmstate.InterfaceIpAddr{addr}}

	base := nmstate.BaseInterface{Name: ifaceName, Type: nmstate.TypeEthernet, State: nmstate.StateUp, IPv4: ipv4}
	return nmstate.Interface{Base: base}
}
