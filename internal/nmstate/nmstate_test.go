// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmstate

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestNormalizeVethToEthernetIdempotent(t *testing.T) {
	s := NewNetworkState()
	s.Interfaces.Set(Interface{Base: BaseInterface{Name: "vetha", Type: TypeVeth, State: StateUp}})

	once := NormalizeVethToEthernet(s)
	twice := NormalizeVethToEthernet(once)

	onceIface, _ := once.Interfaces.GetKernel("vetha")
	twiceIface, _ := twice.Interfaces.GetKernel("vetha")
	require.Equal(t, TypeEthernet, onceIface.Base.Type)
	require.Equal(t, onceIface.Base.Type, twiceIface.Base.Type)
}

func TestIpv4SanitizeRejectsIPv6(t *testing.T) {
	ip := InterfaceIpv4{
		Enabled:   boolPtr(true),
		Addresses: []InterfaceIpAddr{{IP: net.ParseIP("2001:db8::1"), PrefixLength: 64}},
	}
	err := ip.Sanitize()
	require.Error(t, err)
}

func TestIpv6SanitizeRejectsIPv4(t *testing.T) {
	ip := InterfaceIpv6{
		Enabled:   boolPtr(true),
		Addresses: []InterfaceIpAddr{{IP: net.ParseIP("192.0.2.1"), PrefixLength: 24}},
	}
	err := ip.Sanitize()
	require.Error(t, err)
}

func TestIpv4SanitizeRejectsOversizePrefix(t *testing.T) {
	ip := InterfaceIpv4{
		Enabled:   boolPtr(true),
		Addresses: []InterfaceIpAddr{{IP: net.ParseIP("192.0.2.1"), PrefixLength: 33}},
	}
	require.Error(t, ip.Sanitize())
}

func TestIpv4SanitizeStripsLifetimesFromStatic(t *testing.T) {
	ip := InterfaceIpv4{
		Enabled: boolPtr(true),
		Addresses: []InterfaceIpAddr{
			{IP: net.ParseIP("192.0.2.1"), PrefixLength: 24, ValidLifeTime: strPtr(forever)},
		},
	}
	require.NoError(t, ip.Sanitize())
	require.Nil(t, ip.Addresses[0].ValidLifeTime)
}

func TestIpv4SanitizePurgesAutoAddress(t *testing.T) {
	// Mirrors scenario S2: a dynamic-lifetime address alongside a static
	// one -- only the static entry should survive for_apply.
	ip := InterfaceIpv4{
		Enabled: boolPtr(true),
		Dhcp:    boolPtr(true),
		Addresses: []InterfaceIpAddr{
			{IP: net.ParseIP("192.0.2.50"), PrefixLength: 24, ValidLifeTime: strPtr("60s")},
			{IP: net.ParseIP("192.0.2.18"), PrefixLength: 24},
		},
	}
	require.NoError(t, ip.Sanitize())
	require.Len(t, ip.Addresses, 1)
	require.Equal(t, "192.0.2.18", ip.Addresses[0].IP.String())
}

func TestIpv6SanitizeDropsDynamicAndLinkLocal(t *testing.T) {
	ip := InterfaceIpv6{
		Enabled: boolPtr(true),
		Addresses: []InterfaceIpAddr{
			{IP: net.ParseIP("2001:db8::18"), PrefixLength: 64, ValidLifeTime: strPtr(forever)},
			{IP: net.ParseIP("2001:db8::19"), PrefixLength: 64, ValidLifeTime: strPtr("160sec")},
			{IP: net.ParseIP("fe80::1"), PrefixLength: 64},
		},
	}
	require.NoError(t, ip.Sanitize())
	require.Len(t, ip.Addresses, 1)
	require.Equal(t, "2001:db8::18", ip.Addresses[0].IP.String())
}

func TestIpv4SanitizeClearsWhenDisabled(t *testing.T) {
	ip := InterfaceIpv4{
		Enabled:   boolPtr(false),
		Dhcp:      boolPtr(true),
		Addresses: []InterfaceIpAddr{{IP: net.ParseIP("192.0.2.1"), PrefixLength: 24}},
	}
	require.NoError(t, ip.Sanitize())
	require.Nil(t, ip.Dhcp)
	require.Nil(t, ip.Addresses)
}

func TestDhcpStateRoundTrip(t *testing.T) {
	for _, s := range []string{"wait-link-carrier", "running", "done", "error:boom"} {
		d, err := ParseDhcpState(s)
		require.NoError(t, err)
		require.Equal(t, s, d.String())
	}
}

func TestDhcpStateInvalid(t *testing.T) {
	_, err := ParseDhcpState("bogus")
	require.Error(t, err)
}

func TestBaseInterfaceMergeRespectsVethGuard(t *testing.T) {
	b := BaseInterface{Name: "eth0", Type: TypeVeth, State: StateUp}
	b.Merge(BaseInterface{Type: TypeEthernet, State: StateUp})
	require.Equal(t, TypeVeth, b.Type)
}

func TestBaseInterfaceMergeRespectsUnknownGuard(t *testing.T) {
	b := BaseInterface{Name: "eth0", Type: TypeEthernet, State: StateUp}
	b.Merge(BaseInterface{Type: TypeUnknown, State: StateUp})
	require.Equal(t, TypeEthernet, b.Type)
}

func TestEffectiveUpPriorityDefaultsToUnset(t *testing.T) {
	b := BaseInterface{}
	require.Equal(t, UnsetPriority, b.EffectiveUpPriority())
}

func TestOrderedInterfacesAscendingPriority(t *testing.T) {
	ifaces := NewInterfaces()
	ifaces.Set(Interface{Base: BaseInterface{Name: "b", UpPriority: 5}})
	ifaces.Set(Interface{Base: BaseInterface{Name: "a", UpPriority: 1}})
	ifaces.Set(Interface{Base: BaseInterface{Name: "c"}})

	ordered := OrderedInterfaces(ifaces)
	names := make([]string, len(ordered))
	for i, iface := range ordered {
		names[i] = iface.Base.Name
	}
	require.Equal(t, []string{"a", "b", "c"}, names)
}

func TestInterfacesSplitsKernelAndUserspaceKeyspaces(t *testing.T) {
	ifaces := NewInterfaces()
	ifaces.Set(NewEthernet(BaseInterface{Name: "br0", Type: TypeEthernet, State: StateUp}, nil))
	ifaces.Set(NewOvsBridge(BaseInterface{Name: "br0", State: StateUp}, nil))

	require.Equal(t, 2, ifaces.Len())
	kernelIface, ok := ifaces.Get("br0", TypeEthernet)
	require.True(t, ok)
	require.Equal(t, TypeEthernet, kernelIface.Base.Type)

	userIface, ok := ifaces.Get("br0", TypeOvsBridge)
	require.True(t, ok)
	require.Equal(t, TypeOvsBridge, userIface.Base.Type)
}

func TestInterfaceYAMLRoundTrip(t *testing.T) {
	s := NewNetworkState()
	s.Interfaces.Set(NewEthernet(BaseInterface{Name: "eth1", Type: TypeEthernet, State: StateUp}, nil))

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	require.Contains(t, string(out), "name: eth1")
	require.Contains(t, string(out), "type: ethernet")

	var back NetworkState
	require.NoError(t, yaml.Unmarshal(out, &back))
	backIface, ok := back.Interfaces.GetKernel("eth1")
	require.True(t, ok)
	require.Equal(t, "eth1", backIface.Base.Name)
}

func TestAbsentEntryDropsVariantSections(t *testing.T) {
	w := wireInterface{Name: "vetha", Type: TypeEthernet, State: StateAbsent, Veth: &VethConfig{Peer: "vethb"}}
	f := w.toInterface()
	require.Nil(t, f.Veth)
}

func TestValidateSchemaVersion(t *testing.T) {
	v := 2
	s := NetworkState{Version: &v}
	require.Error(t, s.ValidateSchemaVersion())

	v1 := 1
	s.Version = &v1
	require.NoError(t, s.ValidateSchemaVersion())
}
