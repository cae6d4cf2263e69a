// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"context"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/merge"
	"grimm.is/netstated/internal/nmstate"
)

// fakeKernel is an in-memory kernel.Adapter good enough to drive the
// apply pipeline end to end without a real netlink socket.
type fakeKernel struct {
	state nmstate.NetworkState

	failApplyLinks bool
	failApplyIPs   bool

	// verifyLies, when set, makes QueryRunning return a state that never
	// reflects the most recent ApplyIPs call, so the verify loop keeps
	// retrying until it gives up.
	verifyLies bool
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{state: nmstate.NewNetworkState()}
}

func (f *fakeKernel) QueryRunning(ctx context.Context) (nmstate.NetworkState, error) {
	out := nmstate.NewNetworkState()
	for _, iface := range f.state.Interfaces.All() {
		out.Interfaces.Set(iface.Clone())
	}
	return out, nil
}

func (f *fakeKernel) ApplyLinks(ctx context.Context, ifaces []nmstate.Interface, currents []*nmstate.Interface) error {
	if f.failApplyLinks {
		return errApply
	}
	for _, iface := range ifaces {
		if iface.Base.State == nmstate.StateAbsent {
			f.state.Interfaces.Delete(iface.Base.Name, iface.Kind())
			continue
		}
		existing, ok := f.state.Interfaces.Get(iface.Base.Name, iface.Kind())
		if !ok {
			existing = iface.Clone()
		}
		existing.Base.State = iface.Base.State
		existing.Base.Type = iface.Base.Type
		f.state.Interfaces.Set(existing)
	}
	return nil
}

func (f *fakeKernel) ApplyIPs(ctx context.Context, ifaces []nmstate.Interface, currents []*nmstate.Interface) error {
	if f.failApplyIPs {
		return errApply
	}
	if f.verifyLies {
		return nil
	}
	for _, iface := range ifaces {
		existing, ok := f.state.Interfaces.Get(iface.Base.Name, iface.Kind())
		if !ok {
			continue
		}
		if iface.Base.IPv4 != nil {
			v4 := iface.Base.IPv4.Clone()
			existing.Base.IPv4 = &v4
		}
		if iface.Base.IPv6 != nil {
			v6 := iface.Base.IPv6.Clone()
			existing.Base.IPv6 = &v6
		}
		f.state.Interfaces.Set(existing)
	}
	return nil
}

var errApply = fakeErr("simulated kernel failure")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func boolPtr(b bool) *bool { return &b }

func addr(ip string, prefix uint8) nmstate.InterfaceIpAddr {
	return nmstate.InterfaceIpAddr{IP: net.ParseIP(ip), PrefixLength: prefix}
}

func testEngine(t *testing.T, k *fakeKernel) *Engine {
	t.Helper()
	InternalStateDir = t.TempDir()
	log := logging.New(logging.Config{Output: os.Stderr})
	return New(k, nil, nil, nil, log)
}

// S1 from spec.md §8: static v4 on an already-up interface only changes
// the address, and the diff reflects exactly that.
func TestApplyStaticV4OnUpInterface(t *testing.T) {
	k := newFakeKernel()
	k.state.Interfaces.Set(nmstate.NewEthernet(nmstate.BaseInterface{Name: "eth1", Type: nmstate.TypeEthernet, State: nmstate.StateUp}, nil))
	e := testEngine(t, k)

	desired := nmstate.NewNetworkState()
	iface := nmstate.NewEthernet(nmstate.BaseInterface{Name: "eth1", Type: nmstate.TypeEthernet, State: nmstate.StateUp}, nil)
	iface.Base.IPv4 = &nmstate.InterfaceIpv4{Enabled: boolPtr(true), Addresses: []nmstate.InterfaceIpAddr{addr("192.0.2.10", 24)}}
	desired.Interfaces.Set(iface)

	diff, err := e.Apply(context.Background(), desired, merge.ApplyOption{}, nil)
	require.NoError(t, err)
	diffIface, ok := diff.Interfaces.GetKernel("eth1")
	require.True(t, ok)
	require.NotNil(t, diffIface.Base.IPv4)

	saved, err := readAppliedState()
	require.NoError(t, err)
	_, ok = saved.Interfaces.GetKernel("eth1")
	require.True(t, ok)
}

func TestApplyRollsBackOnKernelFailure(t *testing.T) {
	k := newFakeKernel()
	k.state.Interfaces.Set(nmstate.NewEthernet(nmstate.BaseInterface{Name: "eth1", Type: nmstate.TypeEthernet, State: nmstate.StateUp}, nil))
	k.failApplyIPs = true
	e := testEngine(t, k)

	desired := nmstate.NewNetworkState()
	iface := nmstate.NewEthernet(nmstate.BaseInterface{Name: "eth1", Type: nmstate.TypeEthernet, State: nmstate.StateUp}, nil)
	iface.Base.IPv4 = &nmstate.InterfaceIpv4{Enabled: boolPtr(true), Addresses: []nmstate.InterfaceIpAddr{addr("192.0.2.10", 24)}}
	desired.Interfaces.Set(iface)

	_, err := e.Apply(context.Background(), desired, merge.ApplyOption{}, nil)
	require.Error(t, err)

	// Nothing should have been persisted since the apply failed.
	_, statErr := os.Stat(AppliedStatePath())
	require.True(t, os.IsNotExist(statErr))
}

func TestApplyInvalidSchemaVersionRejected(t *testing.T) {
	k := newFakeKernel()
	e := testEngine(t, k)

	desired := nmstate.NewNetworkState()
	bad := 2
	desired.Version = &bad

	_, err := e.Apply(context.Background(), desired, merge.ApplyOption{}, nil)
	require.Error(t, err)
}

func TestQueryRunningMergesKernelOnly(t *testing.T) {
	k := newFakeKernel()
	k.state.Interfaces.Set(nmstate.NewLoopback(nmstate.BaseInterface{Name: "lo", State: nmstate.StateUp}))
	e := testEngine(t, k)

	state, err := e.Query(context.Background(), nmstate.QueryOption{Kind: nmstate.KindRunning}, nil)
	require.NoError(t, err)
	_, ok := state.Interfaces.GetKernel("lo")
	require.True(t, ok)
}

func TestQuerySavedReadsPersistedState(t *testing.T) {
	k := newFakeKernel()
	e := testEngine(t, k)

	desired := nmstate.NewNetworkState()
	desired.Interfaces.Set(nmstate.NewLoopback(nmstate.BaseInterface{Name: "lo", State: nmstate.StateUp}))
	k.state.Interfaces.Set(nmstate.NewLoopback(nmstate.BaseInterface{Name: "lo", State: nmstate.StateUp}))
	_, err := e.Apply(context.Background(), desired, merge.ApplyOption{}, nil)
	require.NoError(t, err)

	saved, err := e.Query(context.Background(), nmstate.QueryOption{Kind: nmstate.KindSaved}, nil)
	require.NoError(t, err)
	_, ok := saved.Interfaces.GetKernel("lo")
	require.True(t, ok)
}

func TestQueryUnsupportedKind(t *testing.T) {
	k := newFakeKernel()
	e := testEngine(t, k)

	_, err := e.Query(context.Background(), nmstate.QueryOption{Kind: "bogus"}, nil)
	require.Error(t, err)
}

// S4 from spec.md §8: desired-absent virtual interface applies and
// verifies as removed.
func TestApplyRemovesAbsentVirtualInterface(t *testing.T) {
	k := newFakeKernel()
	k.state.Interfaces.Set(nmstate.NewOvsBridge(nmstate.BaseInterface{Name: "ovsbr0", Type: nmstate.TypeOvsBridge, State: nmstate.StateUp}, nil))
	e := testEngine(t, k)

	desired := nmstate.NewNetworkState()
	desired.Interfaces.Set(nmstate.NewOvsBridge(nmstate.BaseInterface{Name: "ovsbr0", Type: nmstate.TypeOvsBridge, State: nmstate.StateAbsent}, nil))

	diff, err := e.Apply(context.Background(), desired, merge.ApplyOption{}, nil)
	require.NoError(t, err)
	_, ok := diff.Interfaces.Get("ovsbr0", nmstate.TypeOvsBridge)
	require.True(t, ok)

	saved, err := readAppliedState()
	require.NoError(t, err)
	_, ok = saved.Interfaces.Get("ovsbr0", nmstate.TypeOvsBridge)
	require.False(t, ok)
}
