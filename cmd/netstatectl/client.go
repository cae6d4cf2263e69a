// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netstatectl is the client CLI: ping, show, apply, merge and
// wait. ping talks to the running netstated over its Unix socket; show
// and apply do too or, with --no-daemon, drive a throwaway in-process
// engine directly against the kernel; merge works on local files only
// and wait polls the kernel's link state directly.
package main

import (
	"fmt"
	"net"
	"os"

	"grimm.is/netstated/internal/daemon"
	"grimm.is/netstated/internal/dhcp"
	"grimm.is/netstated/internal/engine"
	"grimm.is/netstated/internal/ipcwire"
	"grimm.is/netstated/internal/kernel"
	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/metrics"
	"grimm.is/netstated/internal/plugin"
)

// dialDaemon connects to the daemon's client socket.
func dialDaemon() (*ipcwire.Conn, error) {
	nc, err := net.Dial("unix", daemon.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to netstated at %s: %w", daemon.SocketPath, err)
	}
	return ipcwire.New(nc), nil
}

// drainLogs forwards "log" envelopes encountered while waiting for a
// reply to stderr, mirroring how an interactive session would stream a
// long-running apply's progress.
func drainLogs(entry ipcwire.LogEntry) {
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", entry.Level, entry.Target, entry.Msg)
}

// localEngine builds a throwaway engine with no plugin supervisor and no
// DHCP manager, for --no-daemon mode: kernel-only, one-shot, no
// background workers to clean up.
func localEngine() *engine.Engine {
	log := logging.Default()
	k := kernel.NewLinuxAdapter()
	return engine.New(k, (*plugin.Supervisor)(nil), (*dhcp.Manager)(nil), metrics.NewEngine(), log)
}
