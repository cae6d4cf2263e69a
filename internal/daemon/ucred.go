// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package daemon

import (
	"net"

	"golang.org/x/sys/unix"

	"grimm.is/netstated/internal/errs"
)

// peerCredentials reads the SO_PEERCRED credentials of the process on
// the other end of conn, the same way any devlxd-style Unix socket
// server authenticates its local callers.
func peerCredentials(conn *net.UnixConn) (*unix.Ucred, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, errs.Wrap(err, errs.KindDaemonFailure, "get raw unix conn")
	}
	var cred *unix.Ucred
	var sockErr error
	ctlErr := raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctlErr != nil {
		return nil, errs.Wrap(ctlErr, errs.KindDaemonFailure, "read peer credentials")
	}
	if sockErr != nil {
		return nil, errs.Wrap(sockErr, errs.KindDaemonFailure, "SO_PEERCRED")
	}
	return cred, nil
}
