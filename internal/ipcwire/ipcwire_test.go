// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ipcwire

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"grimm.is/netstated/internal/errs"
)

type pingReq struct {
	Msg string `json:"msg"`
}

func pipeConns() (*Conn, *Conn) {
	a, b := net.Pipe()
	return New(a), New(b)
}

func TestSendRecvDataRoundTrip(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		done <- client.Send("ping", pingReq{Msg: "hello"})
	}()

	var got pingReq
	err := server.Recv(&got, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", got.Msg)
	require.NoError(t, <-done)
}

func TestRecvDemotesLogEnvelopesBeforeData(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = client.Log(LogInfo, "plugin.dhcp", "worker started")
		_ = client.Send("pong", pingReq{Msg: "world"})
	}()

	var logs []LogEntry
	var got pingReq
	err := server.Recv(&got, func(e LogEntry) { logs = append(logs, e) })
	require.NoError(t, err)
	require.Equal(t, "world", got.Msg)
	require.Len(t, logs, 1)
	require.Equal(t, "plugin.dhcp", logs[0].Target)
	require.Equal(t, LogInfo, logs[0].Level)
}

func TestSendErrorRoundTripsKind(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = client.SendError(errs.New(errs.KindVerificationError, "link eth0 state mismatch"))
	}()

	err := server.Recv(nil, nil)
	require.Error(t, err)
	require.Equal(t, errs.KindVerificationError, errs.GetKind(err))
	require.Contains(t, err.Error(), "link eth0 state mismatch")
}

func TestSendRejectsOversizeMessage(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	big := make([]byte, MaxMessageSize+1)
	for i := range big {
		big[i] = 'a'
	}
	err := client.Send("oversize", pingReq{Msg: string(big)})
	require.Equal(t, errs.KindIpcMessageTooLarge, errs.GetKind(err))
}

func TestRecvTimesOutWhenNoReply(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	server.SetTimeout(50 * time.Millisecond)
	err := server.Recv(nil, nil)
	require.Equal(t, errs.KindTimeout, errs.GetKind(err))
}

func TestRecvReportsClosedConnection(t *testing.T) {
	client, server := pipeConns()
	defer server.Close()

	require.NoError(t, client.Close())
	err := server.Recv(nil, nil)
	require.Equal(t, errs.KindIpcClosed, errs.GetKind(err))
}

func TestRecvCommandReturnsKindAndRawData(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = client.Send("QueryPluginInfo", pingReq{Msg: "who"})
	}()

	kind, data, err := server.RecvCommand()
	require.NoError(t, err)
	require.Equal(t, "QueryPluginInfo", kind)

	var decoded pingReq
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "who", decoded.Msg)
}

func TestUnknownErrorKindNameMapsToBug(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = client.Send(kindError, errorPayload{Kind: "SomethingNewAndUnmapped", Msg: "future kind"})
	}()

	err := server.Recv(nil, nil)
	require.Equal(t, errs.KindBug, errs.GetKind(err))
}
