// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dhcp

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/stretchr/testify/require"

	"grimm.is/netstated/internal/nmstate"
)

// fakeClient hands back one canned lease per Request call and never
// errors, so worker tests don't need a real DHCP server on the wire.
type fakeClient struct {
	mu        sync.Mutex
	requested int
	closed    bool
}

func (f *fakeClient) Request(ctx context.Context, modifiers ...dhcpv4.Modifier) (*dhcpv4.DHCPv4, *dhcpv4.DHCPv4, error) {
	f.mu.Lock()
	f.requested++
	f.mu.Unlock()

	ack := &dhcpv4.DHCPv4{
		YourIPAddr: net.ParseIP("192.0.2.50").To4(),
	}
	ack.UpdateOption(dhcpv4.OptSubnetMask(net.CIDRMask(24, 32)))
	ack.UpdateOption(dhcpv4.OptIPAddressLeaseTime(2 * time.Hour))
	return ack, ack, nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func newTestManager(t *testing.T, fc *fakeClient, applied chan nmstate.Interface) *Manager {
	t.Helper()
	m := NewManager(func(ctx context.Context, iface nmstate.Interface) error {
		if applied != nil {
			applied <- iface
		}
		return nil
	}, nil)
	m.dial = func(nmstate.BaseInterface) (client, error) { return fc, nil }
	return m
}

func TestWorkerAppliesLeaseAndReachesDone(t *testing.T) {
	fc := &fakeClient{}
	applied := make(chan nmstate.Interface, 1)
	m := newTestManager(t, fc, applied)

	m.Ensure(nmstate.BaseInterface{Name: "eth1"})
	defer m.Shutdown()

	select {
	case iface := <-applied:
		require.NotNil(t, iface.Base.IPv4)
		require.Len(t, iface.Base.IPv4.Addresses, 1)
		require.Equal(t, "192.0.2.50", iface.Base.IPv4.Addresses[0].IP.String())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lease to be applied")
	}

	require.Eventually(t, func() bool {
		return m.workers["eth1"].State().Phase == nmstate.DhcpDone.Phase
	}, time.Second, 10*time.Millisecond)
}

func TestManagerEnsureReplacesExistingWorker(t *testing.T) {
	fc := &fakeClient{}
	m := newTestManager(t, fc, nil)

	m.Ensure(nmstate.BaseInterface{Name: "eth1"})
	first := m.workers["eth1"]
	m.Ensure(nmstate.BaseInterface{Name: "eth1"})
	second := m.workers["eth1"]
	defer m.Shutdown()

	require.NotSame(t, first, second)
}

func TestManagerRemoveStopsWorker(t *testing.T) {
	fc := &fakeClient{}
	m := newTestManager(t, fc, nil)

	m.Ensure(nmstate.BaseInterface{Name: "eth1"})
	require.True(t, m.Has("eth1"))

	m.Remove("eth1")
	require.False(t, m.Has("eth1"))

	require.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return fc.closed
	}, time.Second, 10*time.Millisecond)
}

func TestManagerQueryOverlaysDhcpState(t *testing.T) {
	fc := &fakeClient{}
	applied := make(chan nmstate.Interface, 1)
	m := newTestManager(t, fc, applied)

	m.Ensure(nmstate.BaseInterface{Name: "eth1"})
	defer m.Shutdown()
	<-applied

	state := nmstate.NewNetworkState()
	state.Interfaces.Set(nmstate.NewEthernet(nmstate.BaseInterface{Name: "eth1", State: nmstate.StateUp}, nil))
	m.Query(&state)

	iface, ok := state.Interfaces.GetKernel("eth1")
	require.True(t, ok)
	require.NotNil(t, iface.Base.IPv4)
	require.NotNil(t, iface.Base.IPv4.DhcpState)
	require.Equal(t, nmstate.DhcpDone.Phase, iface.Base.IPv4.DhcpState.Phase)
}
