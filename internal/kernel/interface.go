// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kernel abstracts the OS network subsystem. On Linux it wraps
// real netlink/ethtool calls; other platforms get a stub that reports
// KindNoSupport, since the daemon itself only ever targets Linux hosts.
package kernel

import (
	"context"

	"grimm.is/netstated/internal/nmstate"
)

// Adapter queries and mutates the kernel's view of network interfaces.
// Link-level changes (state, MTU, veth creation/deletion) and IP-level
// changes are applied in two separate passes so link changes land before
// the addresses that depend on them existing.
type Adapter interface {
	// QueryRunning returns the kernel's current interface state, skipping
	// reserved names (ovs-system, ovs-netdev, vti).
	QueryRunning(ctx context.Context) (nmstate.NetworkState, error)

	// ApplyLinks applies link-level changes for the given for-apply
	// interfaces, ascending by EffectiveUpPriority. ifaces[i].Base may be
	// paired with its current counterpart via currents[i], which is nil
	// when the interface doesn't exist yet.
	ApplyLinks(ctx context.Context, ifaces []nmstate.Interface, currents []*nmstate.Interface) error

	// ApplyIPs applies IPv4/IPv6 address changes for the given for-apply
	// interfaces. Order doesn't matter here; link state is already settled.
	ApplyIPs(ctx context.Context, ifaces []nmstate.Interface, currents []*nmstate.Interface) error
}
