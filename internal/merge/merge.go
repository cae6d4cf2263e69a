// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package merge

import (
	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/nmstate"
)

// MergedInterface is the per-interface triple the apply engine walks:
// what was desired, what was seen, what the two reduce to, and the two
// derived projections used to drive the kernel/plugins and to verify the
// outcome.
type MergedInterface struct {
	Desired   *nmstate.Interface
	Current   *nmstate.Interface
	Merged    nmstate.Interface
	ForApply  *nmstate.Interface
	ForVerify *nmstate.Interface
}

// IsDesired reports whether the caller supplied an entry for this name.
func (m MergedInterface) IsDesired() bool { return m.Desired != nil }

// IsChanged mirrors the source's is_changed(): true iff this interface
// has something to apply.
func (m MergedInterface) IsChanged() bool { return m.ForApply != nil }

// NewMergedInterface builds the MergedInterface triple from a (possibly
// absent) desired and current entry, mirroring MergedInterface::new.
func NewMergedInterface(desired, current *nmstate.Interface) (MergedInterface, error) {
	var merged nmstate.Interface
	switch {
	case desired != nil && current != nil:
		merged = current.Clone()
		merged.Merge(*desired)
	case desired != nil:
		merged = desired.Clone()
	case current != nil:
		merged = current.Clone()
	default:
		logging.WithComponent("merge").Warn("MergedInterface: both desired and current are nil")
		merged = nmstate.Interface{}
	}

	var forApply, forVerify *nmstate.Interface
	if desired != nil {
		fa := desired.Clone()
		includeExtraForApply(&fa, current)
		forApply = &fa
		fv := desired.Clone()
		forVerify = &fv
	}

	return MergedInterface{Desired: desired, Current: current, Merged: merged, ForApply: forApply, ForVerify: forVerify}, nil
}

// includeExtraForApply copies addressing context (MAC, kernel index) from
// current into the for_apply projection when the caller never supplied
// it, so the kernel adapter always has an addressing key to work with.
func includeExtraForApply(forApply *nmstate.Interface, current *nmstate.Interface) {
	if current == nil {
		return
	}
	if forApply.Base.MacAddress == nil && current.Base.MacAddress != nil {
		mac := *current.Base.MacAddress
		forApply.Base.MacAddress = &mac
	}
	if forApply.Base.KernelIndex == 0 {
		forApply.Base.KernelIndex = current.Base.KernelIndex
	}
}

// MergedNetworkState is the whole-of-state result of one merge call; it
// lives only for the duration of a single apply. Like nmstate.Interfaces,
// it splits kernel netdevices (keyed by name) from userspace OVS
// constructs (keyed by name+type), so a merge never confuses a kernel
// entry for a same-named userspace one.
type MergedNetworkState struct {
	Version     *int
	Description string
	Kernel      map[string]MergedInterface
	User        map[nmstate.UserIfaceKey]MergedInterface
	Option      ApplyOption
}

// Get looks up the MergedInterface for (name, kind) within the keyspace
// kind belongs to.
func (m MergedNetworkState) Get(name string, kind nmstate.InterfaceType) (MergedInterface, bool) {
	if kind.IsUserspace() {
		mi, ok := m.User[nmstate.UserIfaceKey{Name: name, Type: kind}]
		return mi, ok
	}
	mi, ok := m.Kernel[name]
	return mi, ok
}

// All returns every MergedInterface across both keyspaces.
func (m MergedNetworkState) All() []MergedInterface {
	out := make([]MergedInterface, 0, len(m.Kernel)+len(m.User))
	for _, mi := range m.Kernel {
		out = append(out, mi)
	}
	for _, mi := range m.User {
		out = append(out, mi)
	}
	return out
}

// Merge builds a MergedNetworkState from desired and current, after
// normalizing veth→ethernet on both sides, sanitizing every desired
// interface, and running post-merge type-specific hooks.
func Merge(desired, current nmstate.NetworkState, opt ApplyOption) (MergedNetworkState, error) {
	desired = nmstate.NormalizeVethToEthernet(desired)
	current = nmstate.NormalizeVethToEthernet(current)

	remainingCurrent := current.Interfaces.Clone()
	kernel := make(map[string]MergedInterface, len(desired.Interfaces.Kernel)+len(remainingCurrent.Kernel))
	user := make(map[nmstate.UserIfaceKey]MergedInterface, len(desired.Interfaces.User)+len(remainingCurrent.User))

	for _, des := range desired.Interfaces.AllSorted() {
		des := des
		name, kind := des.Base.Name, des.Kind()
		var curPtr *nmstate.Interface
		if cur, ok := remainingCurrent.Get(name, kind); ok {
			curPtr = &cur
			remainingCurrent.Delete(name, kind)
		}
		if err := des.SanitizeIfaceSpecific(curPtr); err != nil {
			return MergedNetworkState{}, err
		}
		if err := des.Base.Sanitize(true); err != nil {
			return MergedNetworkState{}, err
		}
		mi, err := NewMergedInterface(&des, curPtr)
		if err != nil {
			return MergedNetworkState{}, err
		}
		if kind.IsUserspace() {
			user[nmstate.UserIfaceKey{Name: name, Type: kind}] = mi
		} else {
			kernel[name] = mi
		}
	}

	for name, cur := range remainingCurrent.Kernel {
		cur := cur
		mi, err := NewMergedInterface(nil, &cur)
		if err != nil {
			return MergedNetworkState{}, err
		}
		kernel[name] = mi
	}
	for key, cur := range remainingCurrent.User {
		cur := cur
		mi, err := NewMergedInterface(nil, &cur)
		if err != nil {
			return MergedNetworkState{}, err
		}
		user[key] = mi
	}

	postMergeSanitize(kernel, user)

	return MergedNetworkState{
		Version:     desired.Version,
		Description: desired.Description,
		Kernel:      kernel,
		User:        user,
		Option:      opt,
	}, nil
}

// postMergeSanitize runs type-specific hooks after the generic merge,
// e.g. forcing loopback's IPv4 stack enabled with no DHCP/addresses when
// the caller left it unspecified. Loopback is always a kernel
// netdevice; OVS bonding only concerns the User keyspace.
func postMergeSanitize(kernel map[string]MergedInterface, user map[nmstate.UserIfaceKey]MergedInterface) {
	for name, mi := range kernel {
		if mi.Merged.Kind() == nmstate.TypeLoopback {
			sanitizeLoopback(&mi)
			kernel[name] = mi
		}
	}
	for key, mi := range user {
		if mi.Merged.Kind() == nmstate.TypeOvsBridge && mi.Merged.OvsBridge != nil && len(mi.Merged.OvsBridge.Ports) > 1 {
			logging.WithComponent("merge").Warn("OVS bond (multiple ports on one bridge) is not supported, leaving untouched", "bridge", key.Name)
		}
	}
}

func sanitizeLoopback(mi *MergedInterface) {
	if mi.Merged.Base.IPv4 == nil {
		mi.Merged.Base.IPv4 = nmstate.NewInterfaceIpv4()
		t := true
		mi.Merged.Base.IPv4.Enabled = &t
	}
	if mi.ForApply != nil && mi.ForApply.Base.IPv4 == nil {
		mi.ForApply.Base.IPv4 = nmstate.NewInterfaceIpv4()
		t := true
		mi.ForApply.Base.IPv4.Enabled = &t
	}
}

// GenStateForApply returns the NetworkState containing only the
// for_apply projection of every changed interface.
func (m MergedNetworkState) GenStateForApply() nmstate.NetworkState {
	out := nmstate.NewNetworkState()
	out.Version = m.Version
	out.Description = m.Description
	for _, mi := range m.All() {
		if mi.ForApply != nil {
			out.Interfaces.Set(*mi.ForApply)
		}
	}
	return out
}
