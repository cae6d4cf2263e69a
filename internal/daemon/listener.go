// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package daemon is the front-end that binds the client-facing Unix
// socket, accepts connections and dispatches the framed ClientCmd loop
// against an Engine. Grounded on the teacher's ctlplane.Server.Start /
// StartWithListener accept loop (listener.Accept in a goroutine, one
// handler goroutine per connection, panic recovery around the handler)
// and on the reference daemon's listener for the stale-socket-removal
// and parent-directory-creation behavior.
package daemon

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"grimm.is/netstated/internal/errs"
)

// SocketPath is the daemon's client-facing Unix socket.
const SocketPath = "/var/run/NetworkManager/sockets/daemon"

// SocketMode is world-writable: any local user may Ping or query; only
// root may mutate state, enforced per-command by the peer-credential
// check, not by socket permissions.
const SocketMode = 0o666

// Listen removes any stale socket file at path, creates its parent
// directory if needed, and binds a new Unix stream listener at mode.
func Listen(path string, mode os.FileMode) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Wrapf(err, errs.KindDaemonFailure, "create socket dir for %s", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errs.Wrapf(err, errs.KindDaemonFailure, "remove stale socket %s", path)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, errs.Wrapf(err, errs.KindDaemonFailure, "listen on %s", path)
	}
	if err := os.Chmod(path, mode); err != nil {
		listener.Close()
		return nil, errs.Wrapf(err, errs.KindDaemonFailure, "chmod %s", path)
	}
	return listener, nil
}

func addrString(l net.Listener) string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%v", l.Addr())
}
