// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package merge

import (
	"fmt"

	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/nmstate"
)

// Verify compares, for every desired interface, the for_verify projection
// against the corresponding entry in the freshly-queried current state.
// The first differing field raises VerificationError with a dotted path.
// Absent-but-found is tolerated for physical interfaces and rejected for
// virtual ones, since hardware can't vanish but an OVS bridge can and
// must if the caller asked for it.
func (m MergedNetworkState) Verify(current nmstate.NetworkState) error {
	current = nmstate.NormalizeVethToEthernet(current)
	for _, iface := range current.Interfaces.All() {
		iface.Base.SanitizeForVerify()
		current.Interfaces.Set(iface)
	}

	for _, mi := range m.All() {
		if !mi.IsDesired() || mi.ForVerify == nil {
			continue
		}
		desired := mi.ForVerify
		name := desired.Base.Name
		curIface, found := current.Interfaces.Get(name, desired.Kind())

		wantsGone := desired.Base.State == nmstate.StateAbsent ||
			(desired.IsVirtual() && desired.Base.State == nmstate.StateDown)

		if wantsGone {
			if found {
				if curIface.IsVirtual() {
					return errs.Errorf(errs.KindVerificationError,
						"%s.interface.state: absent/down interface still found as %s", name, curIface.Base.State)
				}
				// Physical interfaces can't disappear; tolerate it.
			}
			continue
		}

		if !found {
			if desired.Base.State == nmstate.StateUp {
				return errs.Errorf(errs.KindVerificationError, "%s.interface: failed to find desired interface", name)
			}
			continue
		}

		if desired.Base.State == nmstate.StateUp {
			if err := verifyFields(name, *desired, curIface); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyFields(name string, desired, current nmstate.Interface) error {
	if desired.Base.MacAddress != nil && current.Base.MacAddress != nil &&
		*desired.Base.MacAddress != *current.Base.MacAddress {
		return errs.Errorf(errs.KindVerificationError, "%s.interface.mac-address: expected %s, got %s",
			name, *desired.Base.MacAddress, *current.Base.MacAddress)
	}
	if desired.Base.MTU != nil && current.Base.MTU != nil && *desired.Base.MTU != *current.Base.MTU {
		return errs.Errorf(errs.KindVerificationError, "%s.interface.mtu: expected %d, got %d",
			name, *desired.Base.MTU, *current.Base.MTU)
	}
	if err := verifyIPv4(name, desired.Base.IPv4, current.Base.IPv4); err != nil {
		return err
	}
	if err := verifyIPv6(name, desired.Base.IPv6, current.Base.IPv6); err != nil {
		return err
	}
	return nil
}

func verifyIPv4(name string, desired, current *nmstate.InterfaceIpv4) error {
	if desired == nil || !desired.IsEnabled() {
		return nil
	}
	if current == nil {
		return errs.Errorf(errs.KindVerificationError, "%s.interface.ipv4: expected enabled, got none", name)
	}
	if desired.IsAuto() {
		return nil // DHCP-assigned addresses aren't known ahead of verify.
	}
	if !addrsEqual(desired.Addresses, current.Addresses) {
		return errs.Errorf(errs.KindVerificationError, "%s.interface.ipv4.address: expected %v, got %v",
			name, addrStrings(desired.Addresses), addrStrings(current.Addresses))
	}
	return nil
}

func verifyIPv6(name string, desired, current *nmstate.InterfaceIpv6) error {
	if desired == nil || !desired.IsEnabled() {
		return nil
	}
	if current == nil {
		return errs.Errorf(errs.KindVerificationError, "%s.interface.ipv6: expected enabled, got none", name)
	}
	if desired.IsAuto() {
		return nil
	}
	if !addrsEqual(desired.Addresses, current.Addresses) {
		return errs.Errorf(errs.KindVerificationError, "%s.interface.ipv6.address: expected %v, got %v",
			name, addrStrings(desired.Addresses), addrStrings(current.Addresses))
	}
	return nil
}

func addrStrings(addrs []nmstate.InterfaceIpAddr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = fmt.Sprintf("%s/%d", a.IP, a.PrefixLength)
	}
	return out
}
