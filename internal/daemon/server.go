// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"grimm.is/netstated/internal/engine"
	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/ipcwire"
	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/merge"
	"grimm.is/netstated/internal/nmstate"
)

const (
	cmdPing              = "Ping"
	cmdQueryNetworkState = "QueryNetworkState"
	cmdApplyNetworkState = "ApplyNetworkState"
)

// Server accepts connections on the client-facing socket and dispatches
// each one's framed ClientCmd loop against an Engine.
type Server struct {
	eng      *engine.Engine
	log      *logging.Logger
	listener net.Listener
}

// New wraps eng for serving on the client-facing socket.
func New(eng *engine.Engine, log *logging.Logger) *Server {
	return &Server{eng: eng, log: log.WithComponent("daemon")}
}

// Start binds SocketPath at SocketMode and serves it in the background,
// mirroring the teacher's Start/StartWithListener split so tests can
// supply their own listener.
func (s *Server) Start() error {
	listener, err := Listen(SocketPath, SocketMode)
	if err != nil {
		return err
	}
	return s.StartWithListener(listener)
}

// StartWithListener runs the accept loop over an already-bound listener
// in the background and returns immediately.
func (s *Server) StartWithListener(listener net.Listener) error {
	s.listener = listener
	s.log.Info("daemon listening", "addr", addrString(listener))

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.log.Warn("accept error", "error", err)
				return
			}
			go s.handleConn(conn)
		}
	}()
	return nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(nc net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("connection handler panicked", "panic", r)
		}
		nc.Close()
	}()

	uid := uint32(1 << 31) // sentinel: unreadable credentials never pass the root check
	if unixConn, ok := nc.(*net.UnixConn); ok {
		if cred, err := peerCredentials(unixConn); err != nil {
			s.log.Warn("failed to read peer credentials", "error", err)
		} else {
			uid = cred.Uid
		}
	}

	conn := ipcwire.New(nc)
	ctx := context.Background()

	for {
		kind, data, err := conn.RecvCommand()
		if err != nil {
			if errs.GetKind(err) != errs.KindIpcClosed {
				s.log.Debug("connection ended", "error", err)
			}
			return
		}
		s.dispatch(ctx, conn, uid, kind, data)
	}
}

func (s *Server) dispatch(ctx context.Context, conn *ipcwire.Conn, uid uint32, kind string, data json.RawMessage) {
	logf := func(msg string) {
		conn.Log(ipcwire.LogInfo, "engine", msg)
	}

	switch kind {
	case cmdPing:
		if err := conn.Send(cmdPing, "pong"); err != nil {
			s.log.Debug("send reply failed", "error", err)
		}

	case cmdQueryNetworkState:
		var opt nmstate.QueryOption
		if err := json.Unmarshal(data, &opt); err != nil {
			conn.SendError(errs.Wrap(err, errs.KindInvalidArgument, "decode QueryNetworkState payload"))
			return
		}
		state, err := s.eng.Query(ctx, opt, logf)
		if err != nil {
			conn.SendError(err)
			return
		}
		if err := conn.Send(cmdQueryNetworkState, state); err != nil {
			s.log.Debug("send reply failed", "error", err)
		}

	case cmdApplyNetworkState:
		if uid != 0 {
			conn.SendError(errs.New(errs.KindPermissionDeny, "ApplyNetworkState requires root"))
			return
		}
		var req struct {
			State nmstate.NetworkState `json:"state"`
			Opt   merge.ApplyOption    `json:"opt"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			conn.SendError(errs.Wrap(err, errs.KindInvalidArgument, "decode ApplyNetworkState payload"))
			return
		}
		diff, err := s.eng.Apply(ctx, req.State, req.Opt, logf)
		if err != nil {
			conn.SendError(err)
			return
		}
		if err := conn.Send(cmdApplyNetworkState, diff); err != nil {
			s.log.Debug("send reply failed", "error", err)
		}

	default:
		conn.SendError(errs.Errorf(errs.KindNoSupport, "unsupported command %q", kind))
	}
}
