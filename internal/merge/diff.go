// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package merge

import (
	"reflect"

	"grimm.is/netstated/internal/nmstate"
)

// GenDiff returns the subset of applyState's interfaces whose
// apply-visible fields differ from their counterpart in pre. An
// interface absent from the diff means every field desired and pre agree
// on; this is scenario S1's "diff shows only the address change".
func GenDiff(applyState, pre nmstate.NetworkState) nmstate.NetworkState {
	out := nmstate.NewNetworkState()
	out.Version = applyState.Version
	if applyState.Description != pre.Description {
		out.Description = applyState.Description
	}
	for _, desired := range applyState.Interfaces.All() {
		preIface, existed := pre.Interfaces.Get(desired.Base.Name, desired.Kind())
		if !existed {
			out.Interfaces.Set(desired.Clone())
			continue
		}
		if d, changed := diffInterface(desired, preIface); changed {
			out.Interfaces.Set(d)
		}
	}
	return out
}

func diffInterface(desired, pre nmstate.Interface) (nmstate.Interface, bool) {
	d := nmstate.Interface{Base: nmstate.BaseInterface{Name: desired.Base.Name, Type: desired.Base.Type}}
	changed := false

	if desired.Base.State != pre.Base.State {
		d.Base.State = desired.Base.State
		changed = true
	}
	if !reflect.DeepEqual(desired.Base.MacAddress, pre.Base.MacAddress) {
		d.Base.MacAddress = desired.Base.MacAddress
		changed = true
	}
	if !reflect.DeepEqual(desired.Base.MTU, pre.Base.MTU) {
		d.Base.MTU = desired.Base.MTU
		changed = true
	}
	if !ipv4Equal(desired.Base.IPv4, pre.Base.IPv4) {
		d.Base.IPv4 = desired.Base.IPv4
		changed = true
	}
	if !ipv6Equal(desired.Base.IPv6, pre.Base.IPv6) {
		d.Base.IPv6 = desired.Base.IPv6
		changed = true
	}
	if !reflect.DeepEqual(desired.Veth, pre.Veth) {
		d.Veth = desired.Veth
		changed = true
	}
	if !reflect.DeepEqual(desired.OvsBridge, pre.OvsBridge) {
		d.OvsBridge = desired.OvsBridge
		changed = true
	}
	return d, changed
}

func ipv4Equal(a, b *nmstate.InterfaceIpv4) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a.Enabled, b.Enabled) &&
		reflect.DeepEqual(a.Dhcp, b.Dhcp) &&
		addrsEqual(a.Addresses, b.Addresses)
}

func ipv6Equal(a, b *nmstate.InterfaceIpv6) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a.Enabled, b.Enabled) &&
		reflect.DeepEqual(a.Dhcp, b.Dhcp) &&
		reflect.DeepEqual(a.Autoconf, b.Autoconf) &&
		addrsEqual(a.Addresses, b.Addresses)
}

func addrsEqual(a, b []nmstate.InterfaceIpAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].IP.String() != b[i].IP.String() || a[i].PrefixLength != b[i].PrefixLength {
			return false
		}
	}
	return true
}
