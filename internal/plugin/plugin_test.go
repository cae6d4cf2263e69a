// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package plugin

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/ipcwire"
	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/merge"
	"grimm.is/netstated/internal/nmstate"
)

func testLogger() *logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Output = io.Discard
	return logging.New(cfg)
}

// fakePlugin answers exactly one command shape per test; it's enough to
// exercise client.call and the Supervisor fan-out logic without a real
// plugin binary.
type fakePlugin struct {
	info     Info
	state    nmstate.NetworkState
	applyErr error
}

func (p *fakePlugin) serve(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go p.handle(t, nc)
		}
	}()
}

func (p *fakePlugin) handle(t *testing.T, nc net.Conn) {
	defer nc.Close()
	conn := ipcwire.New(nc)
	kind, data, err := conn.RecvCommand()
	if err != nil {
		return
	}
	switch kind {
	case cmdQueryPluginInfo:
		_ = conn.Send("reply", p.info)
	case cmdQueryNetworkState:
		_ = conn.Send("reply", p.state)
	case cmdApplyNetworkState:
		var payload applyPayload
		_ = json.Unmarshal(data, &payload)
		if p.applyErr != nil {
			_ = conn.SendError(p.applyErr)
			return
		}
		_ = conn.Send("reply", struct{}{})
	case cmdQuit:
		_ = conn.Send("reply", struct{}{})
	}
}

func listenUnix(t *testing.T, name string) (net.Listener, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln, path
}

func TestClientQueryPluginInfo(t *testing.T) {
	fp := &fakePlugin{info: Info{Name: "ovs", Version: "1.0", IfaceTypes: []nmstate.InterfaceType{nmstate.TypeOvsBridge}}}
	ln, path := listenUnix(t, "ovs.sock")
	fp.serve(t, ln)

	c := &client{socketPath: path}
	info, err := c.queryPluginInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ovs", info.Name)
	require.Equal(t, []nmstate.InterfaceType{nmstate.TypeOvsBridge}, info.IfaceTypes)
}

func TestClientQueryNetworkStateRoundTrips(t *testing.T) {
	want := nmstate.NewNetworkState()
	want.Interfaces.Set(nmstate.NewOvsBridge(nmstate.BaseInterface{Name: "br0", Type: nmstate.TypeOvsBridge}, nil))

	fp := &fakePlugin{state: want}
	ln, path := listenUnix(t, "ovs.sock")
	fp.serve(t, ln)

	c := &client{socketPath: path}
	got, err := c.queryNetworkState(context.Background(), nmstate.RunningQueryOption())
	require.NoError(t, err)
	_, ok := got.Interfaces.Get("br0", nmstate.TypeOvsBridge)
	require.True(t, ok)
}

func TestClientApplyNetworkStatePropagatesPluginError(t *testing.T) {
	fp := &fakePlugin{applyErr: errs.New(errs.KindPluginFailure, "ovsdb unreachable")}
	ln, path := listenUnix(t, "ovs.sock")
	fp.serve(t, ln)

	c := &client{socketPath: path}
	err := c.applyNetworkState(context.Background(), nmstate.NewNetworkState(), merge.ApplyOption{})
	require.Equal(t, errs.KindPluginFailure, errs.GetKind(err))
}

func TestSupervisorQueryDemotesFailureAndContinues(t *testing.T) {
	good := &fakePlugin{
		info:  Info{Name: "good"},
		state: func() nmstate.NetworkState { s := nmstate.NewNetworkState(); s.Interfaces.Set(nmstate.NewUnknown(nmstate.BaseInterface{Name: "eth1"})); return s }(),
	}
	lnGood, pathGood := listenUnix(t, "good.sock")
	good.serve(t, lnGood)

	lnBad, pathBad := listenUnix(t, "bad.sock")
	lnBad.Close() // closed listener: connecting to it fails immediately

	s := &Supervisor{
		log: testLogger(),
		records: map[string]*record{
			"good": {name: "good", socketPath: pathGood},
			"bad":  {name: "bad", socketPath: pathBad},
		},
	}

	var logged []string
	states := s.Query(context.Background(), nmstate.RunningQueryOption(), func(msg string) { logged = append(logged, msg) })

	require.Len(t, states, 1)
	_, ok := states[0].Interfaces.GetKernel("eth1")
	require.True(t, ok)
	require.Len(t, logged, 1)
	require.Contains(t, logged[0], "bad:")
}

func TestSupervisorApplyFiltersByIfaceType(t *testing.T) {
	var gotApply nmstate.NetworkState
	fp := &fakePlugin{info: Info{Name: "ovs", IfaceTypes: []nmstate.InterfaceType{nmstate.TypeOvsBridge}}}
	ln, path := listenUnix(t, "ovs.sock")

	// capture what the plugin actually received instead of the canned reply
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			conn := ipcwire.New(nc)
			kind, data, err := conn.RecvCommand()
			if err != nil {
				nc.Close()
				continue
			}
			if kind == cmdApplyNetworkState {
				var payload applyPayload
				_ = json.Unmarshal(data, &payload)
				gotApply = payload.State
				_ = conn.Send("reply", struct{}{})
			} else {
				_ = conn.Send("reply", fp.info)
			}
			nc.Close()
		}
	}()
	t.Cleanup(func() { ln.Close() })

	s := &Supervisor{
		log:     testLogger(),
		records: map[string]*record{"ovs": {name: "ovs", info: fp.info, socketPath: path}},
	}

	state := nmstate.NewNetworkState()
	state.Interfaces.Set(nmstate.NewOvsBridge(nmstate.BaseInterface{Name: "br0", Type: nmstate.TypeOvsBridge}, nil))
	state.Interfaces.Set(nmstate.NewEthernet(nmstate.BaseInterface{Name: "eth0", Type: nmstate.TypeEthernet}, nil))

	s.Apply(context.Background(), state, merge.ApplyOption{}, nil)

	require.Eventually(t, func() bool { return gotApply.Interfaces.Len() > 0 }, time.Second, 10*time.Millisecond)
	_, ok := gotApply.Interfaces.Get("br0", nmstate.TypeOvsBridge)
	require.True(t, ok)
	_, ok = gotApply.Interfaces.GetKernel("eth0")
	require.False(t, ok)
}

func TestHasPrefix(t *testing.T) {
	require.True(t, hasPrefix("NetworkManager-plugin-ovs", NamePrefix))
	require.False(t, hasPrefix("netstated", NamePrefix))
	require.False(t, hasPrefix("short", "NetworkManager-plugin-"))
}
