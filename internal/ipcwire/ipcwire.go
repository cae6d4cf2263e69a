// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ipcwire implements the daemon/plugin/CLI wire protocol: a
// u32-big-endian length prefix followed by a UTF-8 JSON envelope of the
// shape {"kind": <tag>, "data": <payload>}. Three envelope kinds cross
// the wire -- "error", "log" and application data -- and a Conn's Recv
// transparently drains "log" envelopes while waiting for the real reply.
package ipcwire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"grimm.is/netstated/internal/errs"
)

// MaxMessageSize is the largest frame body Conn will send or accept.
const MaxMessageSize = 1024 * 1024 * 10

// DefaultTimeout is used by Recv when the caller supplies no deadline.
const DefaultTimeout = 30 * time.Second

const (
	kindError = "error"
	kindLog   = "log"
)

// LogLevel mirrors the level tag carried in a "log" envelope.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is the payload of a "log" envelope.
type LogEntry struct {
	Level  LogLevel `json:"level"`
	Target string   `json:"target"`
	Msg    string   `json:"msg"`
}

// errorPayload is the payload of an "error" envelope.
type errorPayload struct {
	Kind string `json:"kind"`
	Msg  string `json:"msg"`
}

var kindNames = map[errs.Kind]string{
	errs.KindBug:                  "Bug",
	errs.KindIpcClosed:            "IpcClosed",
	errs.KindIpcFailure:           "IpcFailure",
	errs.KindIpcMessageTooLarge:   "IpcMessageTooLarge",
	errs.KindInvalidLogLevel:      "InvalidLogLevel",
	errs.KindInvalidUuid:          "InvalidUuid",
	errs.KindInvalidSchemaVersion: "InvalidSchemaVersion",
	errs.KindInvalidArgument:      "InvalidArgument",
	errs.KindTimeout:              "Timeout",
	errs.KindNoSupport:            "NoSupport",
	errs.KindPluginFailure:        "PluginFailure",
	errs.KindDaemonFailure:        "DaemonFailure",
	errs.KindVerificationError:    "VerificationError",
	errs.KindPermissionDeny:       "PermissionDeny",
}

var namesToKind = func() map[string]errs.Kind {
	m := make(map[string]errs.Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

// envelope is the wire shape {"kind": ..., "data": ...}; data is kept raw
// so Recv can decode it into the caller's type only once the kind is known.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Conn wraps a net.Conn (typically a *net.UnixConn) with the length-prefixed
// JSON framing and the error/log/data envelope discipline.
type Conn struct {
	nc      net.Conn
	timeout time.Duration
}

// New wraps nc with the default 30s recv timeout.
func New(nc net.Conn) *Conn {
	return &Conn{nc: nc, timeout: DefaultTimeout}
}

// SetTimeout overrides the budget Recv gives a reply before returning
// KindTimeout. A zero value disables the deadline.
func (c *Conn) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// Send writes a data envelope tagged kind with payload v.
func (c *Conn) Send(kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(err, errs.KindBug, "marshal ipc payload")
	}
	return c.sendEnvelope(envelope{Kind: kind, Data: data})
}

// SendError writes an error envelope describing err.
func (c *Conn) SendError(err error) error {
	kind := errs.GetKind(err)
	name, ok := kindNames[kind]
	if !ok {
		name = "Bug"
	}
	payload, merr := json.Marshal(errorPayload{Kind: name, Msg: err.Error()})
	if merr != nil {
		return errs.Wrap(merr, errs.KindBug, "marshal ipc error payload")
	}
	return c.sendEnvelope(envelope{Kind: kindError, Data: payload})
}

// Log writes a log envelope. It does not wait for or expect a reply.
func (c *Conn) Log(level LogLevel, target, msg string) error {
	payload, err := json.Marshal(LogEntry{Level: level, Target: target, Msg: msg})
	if err != nil {
		return errs.Wrap(err, errs.KindBug, "marshal ipc log entry")
	}
	return c.sendEnvelope(envelope{Kind: kindLog, Data: payload})
}

func (c *Conn) sendEnvelope(env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return errs.Wrap(err, errs.KindBug, "marshal ipc envelope")
	}
	if len(body) > MaxMessageSize {
		return errs.Errorf(errs.KindIpcMessageTooLarge, "ipc message of %d bytes exceeds %d byte limit", len(body), MaxMessageSize)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := c.nc.Write(prefix[:]); err != nil {
		return wrapWriteErr(err)
	}
	if _, err := c.nc.Write(body); err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

func wrapWriteErr(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return errs.Wrap(err, errs.KindIpcFailure, "connection is closed")
	}
	return errs.Wrap(err, errs.KindIpcFailure, "write ipc frame")
}

// Recv waits for the next non-log envelope, decoding its data payload into
// v. Log envelopes received in the meantime are passed to onLog (which may
// be nil) and consumed without ending the wait. An error envelope is
// returned as an *errs.Error of the matching Kind. The wait is bounded by
// the Conn's configured timeout; exceeding it returns KindTimeout.
func (c *Conn) Recv(v any, onLog func(LogEntry)) error {
	deadline := time.Time{}
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	for {
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return errs.New(errs.KindTimeout, "timed out waiting for ipc reply")
			}
			if err := c.nc.SetReadDeadline(deadline); err != nil {
				return errs.Wrap(err, errs.KindBug, "set ipc read deadline")
			}
		}
		env, err := c.recvEnvelope()
		if err != nil {
			return err
		}
		switch env.Kind {
		case kindLog:
			var entry LogEntry
			if jerr := json.Unmarshal(env.Data, &entry); jerr == nil && onLog != nil {
				onLog(entry)
			}
			continue
		case kindError:
			var payload errorPayload
			if jerr := json.Unmarshal(env.Data, &payload); jerr != nil {
				return errs.Wrap(jerr, errs.KindIpcFailure, "malformed ipc error envelope")
			}
			kind, ok := namesToKind[payload.Kind]
			if !ok {
				kind = errs.KindBug
			}
			return &errs.Error{Kind: kind, Message: payload.Msg}
		default:
			if v == nil {
				return nil
			}
			if err := json.Unmarshal(env.Data, v); err != nil {
				return errs.Wrap(err, errs.KindIpcFailure, "malformed ipc data envelope")
			}
			return nil
		}
	}
}

// RecvCommand waits for the next envelope and returns its kind tag
// verbatim along with the still-undecoded data payload, for a command
// dispatcher (the daemon front-end, a plugin's request loop) that needs
// to pick a decode target based on which command arrived. It does not
// special-case "log" or "error" the way Recv does -- those tags are only
// reserved on the reply side of an exchange.
func (c *Conn) RecvCommand() (kind string, data json.RawMessage, err error) {
	if c.timeout > 0 {
		if err := c.nc.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return "", nil, errs.Wrap(err, errs.KindBug, "set ipc read deadline")
		}
	}
	env, err := c.recvEnvelope()
	if err != nil {
		return "", nil, err
	}
	return env.Kind, env.Data, nil
}

func (c *Conn) recvEnvelope() (envelope, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(c.nc, prefix[:]); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return envelope{}, errs.New(errs.KindTimeout, "timed out waiting for ipc reply")
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return envelope{}, errs.New(errs.KindIpcClosed, "connection closed")
		}
		return envelope{}, errs.Wrap(err, errs.KindIpcFailure, "read ipc length prefix")
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size == 0 {
		return envelope{}, errs.New(errs.KindIpcFailure, "connection is closed by remote")
	}
	if size > MaxMessageSize {
		return envelope{}, errs.Errorf(errs.KindIpcMessageTooLarge, "ipc message of %d bytes exceeds %d byte limit", size, MaxMessageSize)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(c.nc, body); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return envelope{}, errs.New(errs.KindTimeout, "timed out waiting for ipc reply")
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return envelope{}, errs.New(errs.KindIpcFailure, "connection closed by other end")
		}
		return envelope{}, errs.Wrap(err, errs.KindIpcFailure, "read ipc frame body")
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, errs.Wrap(err, errs.KindIpcFailure, fmt.Sprintf("malformed ipc frame: %v", err))
	}
	return env, nil
}
