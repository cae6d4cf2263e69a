// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package plugin discovers, spawns and talks to sibling
// NetworkManager-plugin-* executables over the framed-JSON wire protocol,
// and fans queries and applies out across whichever of them answered.
package plugin

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/ipcwire"
	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/merge"
	"grimm.is/netstated/internal/nmstate"
)

// NamePrefix is the filename prefix a sibling executable must carry to be
// treated as a plugin.
const NamePrefix = "NetworkManager-plugin-"

// DefaultSocketDir is where connect() looks for plugin-opened sockets.
const DefaultSocketDir = "/var/run/NetworkManager/sockets/plugin"

// connRetryCount and connRetryInterval bound the startup connect poll to
// roughly 10s total, matching the wait a freshly-spawned plugin needs to
// open its listening socket.
const (
	connRetryCount    = 50
	connRetryInterval = 200 * time.Millisecond
)

// Info is a plugin's self-reported identity, returned by QueryPluginInfo.
type Info struct {
	Name       string                  `json:"name"`
	Version    string                  `json:"version"`
	IfaceTypes []nmstate.InterfaceType `json:"iface_types"`
}

// Wire command tags.
const (
	cmdQueryPluginInfo   = "QueryPluginInfo"
	cmdQueryNetworkState = "QueryNetworkState"
	cmdApplyNetworkState = "ApplyNetworkState"
	cmdQuit              = "Quit"
)

type applyPayload struct {
	State  nmstate.NetworkState `json:"state"`
	Option merge.ApplyOption    `json:"option"`
}

// client is a connection to a single plugin, opened fresh per call -- the
// original implementation this is ported from does the same, since a
// plugin socket serves one request per connection.
type client struct {
	socketPath string
}

func (c *client) call(ctx context.Context, cmd string, data, reply any) error {
	nc, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return errs.Wrap(err, errs.KindPluginFailure, "connect to plugin socket "+c.socketPath)
	}
	defer nc.Close()
	conn := ipcwire.New(nc)
	if d, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(d))
	}
	if err := conn.Send(cmd, data); err != nil {
		return errs.Wrap(err, errs.KindPluginFailure, "send "+cmd+" to plugin")
	}
	if err := conn.Recv(reply, nil); err != nil {
		return err
	}
	return nil
}

func (c *client) queryPluginInfo(ctx context.Context) (Info, error) {
	var info Info
	err := c.call(ctx, cmdQueryPluginInfo, struct{}{}, &info)
	return info, err
}

func (c *client) queryNetworkState(ctx context.Context, opt nmstate.QueryOption) (nmstate.NetworkState, error) {
	var state nmstate.NetworkState
	err := c.call(ctx, cmdQueryNetworkState, opt, &state)
	return state, err
}

func (c *client) applyNetworkState(ctx context.Context, state nmstate.NetworkState, opt merge.ApplyOption) error {
	return c.call(ctx, cmdApplyNetworkState, applyPayload{State: state, Option: opt}, nil)
}

func (c *client) quit(ctx context.Context) error {
	return c.call(ctx, cmdQuit, struct{}{}, nil)
}

// record is a connected plugin: its identity plus the socket to reach it.
type record struct {
	name       string
	info       Info
	socketPath string
}

func (r *record) supports(t nmstate.InterfaceType) bool {
	for _, it := range r.info.IfaceTypes {
		if it == t {
			return true
		}
	}
	return false
}

// Supervisor owns the set of connected plugins for the daemon's lifetime.
type Supervisor struct {
	log     *logging.Logger
	cmds    []*exec.Cmd
	records map[string]*record
}

// New spawns every discovered sibling plugin executable, then polls the
// plugin socket directory for up to connRetryCount*connRetryInterval for
// each to open its socket and answer QueryPluginInfo. Plugins that never
// respond are skipped, not fatal -- the daemon runs kernel-only in that
// case.
func New(ctx context.Context, log *logging.Logger) (*Supervisor, error) {
	s := &Supervisor{log: log.WithComponent("plugin"), records: map[string]*record{}}

	paths := discoverPluginFiles()
	for _, p := range paths {
		cmd := exec.CommandContext(ctx, p)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			s.log.Warn("failed to start plugin, ignoring", "path", p, "error", err)
			continue
		}
		s.log.Info("started plugin", "path", p, "pid", cmd.Process.Pid)
		s.cmds = append(s.cmds, cmd)
	}

	expected := len(s.cmds)
	retries := connRetryCount
	for len(s.records) < expected && retries >= 0 {
		retries--
		s.connectPlugins()
		if len(s.records) >= expected {
			break
		}
		select {
		case <-ctx.Done():
			return s, nil
		case <-time.After(connRetryInterval):
		}
	}
	return s, nil
}

// discoverPluginFiles lists siblings of the current executable whose name
// starts with NamePrefix and whose executable bit is set.
func discoverPluginFiles() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	dir := filepath.Dir(exe)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !hasPrefix(e.Name(), NamePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Mode()&0o100 == 0 {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out
}

func hasPrefix(name, prefix string) bool {
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}

// connectPlugins scans DefaultSocketDir for sockets this Supervisor
// hasn't already connected to, and records the ones that answer
// QueryPluginInfo.
func (s *Supervisor) connectPlugins() {
	entries, err := os.ReadDir(DefaultSocketDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(DefaultSocketDir, e.Name())
		info, err := e.Info()
		if err != nil || info.Mode()&os.ModeSocket == 0 {
			continue
		}
		c := &client{socketPath: path}
		ctx, cancel := context.WithTimeout(context.Background(), connRetryInterval)
		pinfo, err := c.queryPluginInfo(ctx)
		cancel()
		if err != nil {
			s.log.Debug("plugin not ready yet", "socket", path, "error", err)
			continue
		}
		if _, exists := s.records[pinfo.Name]; exists {
			continue
		}
		s.records[pinfo.Name] = &record{name: pinfo.Name, info: pinfo, socketPath: path}
		s.log.Info("plugin connected", "name", pinfo.Name, "version", pinfo.Version)
	}
}

// Count returns the number of connected plugins.
func (s *Supervisor) Count() int { return len(s.records) }

// Names returns the connected plugin names, sorted.
func (s *Supervisor) Names() []string {
	names := make([]string, 0, len(s.records))
	for n := range s.records {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// onLog receives a message describing a non-fatal plugin failure, to be
// forwarded as a log envelope on the IPC connection that triggered the
// call.
type onLog func(msg string)

// Query calls QueryNetworkState on every connected plugin, one at a time,
// and returns every state that came back. A plugin failure is reported
// through logf and does not stop the remaining plugins.
func (s *Supervisor) Query(ctx context.Context, opt nmstate.QueryOption, logf onLog) []nmstate.NetworkState {
	var out []nmstate.NetworkState
	for _, name := range s.Names() {
		r := s.records[name]
		c := &client{socketPath: r.socketPath}
		state, err := c.queryNetworkState(ctx, opt)
		if err != nil {
			if logf != nil {
				logf(r.name + ": " + err.Error())
			}
			s.log.Debug("plugin query failed", "plugin", r.name, "error", err)
			continue
		}
		out = append(out, state)
	}
	return out
}

// Apply filters the apply state down to each plugin's supported interface
// types and, for every plugin with a non-empty filtered state, calls
// ApplyNetworkState concurrently. A plugin failure is reported through
// logf and never returned as an error: the verify step catches the
// resulting divergence.
func (s *Supervisor) Apply(ctx context.Context, state nmstate.NetworkState, opt merge.ApplyOption, logf onLog) {
	var wg sync.WaitGroup
	for _, name := range s.Names() {
		r := s.records[name]
		filtered := nmstate.NewNetworkState()
		for _, iface := range state.Interfaces.All() {
			if r.supports(iface.Kind()) {
				filtered.Interfaces.Set(iface)
			}
		}
		if filtered.Interfaces.Len() == 0 {
			continue
		}
		wg.Add(1)
		go func(r *record, filtered nmstate.NetworkState) {
			defer wg.Done()
			c := &client{socketPath: r.socketPath}
			if err := c.applyNetworkState(ctx, filtered, opt); err != nil {
				if logf != nil {
					logf(r.name + ": " + err.Error())
				}
				s.log.Warn("plugin apply failed", "plugin", r.name, "error", err)
			}
		}(r, filtered)
	}
	wg.Wait()
}

// Shutdown asks every connected plugin to quit, then waits for the
// spawned child processes to exit.
func (s *Supervisor) Shutdown(ctx context.Context) {
	for _, name := range s.Names() {
		r := s.records[name]
		c := &client{socketPath: r.socketPath}
		if err := c.quit(ctx); err != nil {
			s.log.Debug("plugin quit failed", "plugin", r.name, "error", err)
		}
	}
	for _, cmd := range s.cmds {
		if cmd.Process == nil {
			continue
		}
		_ = cmd.Wait()
	}
}
