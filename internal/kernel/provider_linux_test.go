// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package kernel

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"grimm.is/netstated/internal/nmstate"
)

func TestSortAddrsIsDeterministic(t *testing.T) {
	addrs := []nmstate.InterfaceIpAddr{
		{IP: net.ParseIP("192.0.2.20"), PrefixLength: 24},
		{IP: net.ParseIP("192.0.2.10"), PrefixLength: 24},
	}
	sortAddrs(addrs)
	require.Equal(t, "192.0.2.10", addrs[0].IP.String())
	require.Equal(t, "192.0.2.20", addrs[1].IP.String())
}

func TestEthernetConfigNilEthtoolReturnsNil(t *testing.T) {
	a := NewLinuxAdapter()
	require.Nil(t, a.ethernetConfig("eth0", nil))
}

func TestIsExistsErr(t *testing.T) {
	require.True(t, isExistsErr(errFileExists{}))
	require.False(t, isExistsErr(nil))
}

type errFileExists struct{}

func (errFileExists) Error() string { return "file exists" }
