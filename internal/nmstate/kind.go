// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nmstate is the value-typed data model shared by the kernel
// adapter, state merger, plugin supervisor, DHCP manager and apply
// engine: NetworkState, Interface and its IP configuration.
package nmstate

// InterfaceType is the closed set of interface kinds this daemon
// understands. Anything else round-trips through Unknown.
type InterfaceType string

const (
	TypeEthernet    InterfaceType = "ethernet"
	TypeVeth        InterfaceType = "veth"
	TypeLoopback    InterfaceType = "loopback"
	TypeOvsBridge   InterfaceType = "ovs-bridge"
	TypeOvsInterface InterfaceType = "ovs-interface"
	TypeUnknown     InterfaceType = "unknown"
)

func (t InterfaceType) String() string { return string(t) }

// MarshalYAML renders the interface type as its kebab-case wire string.
func (t InterfaceType) MarshalYAML() (any, error) {
	if t == "" {
		return string(TypeUnknown), nil
	}
	return string(t), nil
}

// IsUnknown reports whether t is the catch-all Unknown type.
func (t InterfaceType) IsUnknown() bool {
	return t == "" || t == TypeUnknown
}

// IsUserspace reports whether t denotes a userspace (OVS) construct,
// managed by a plugin rather than the kernel adapter. Userspace
// interfaces live in their own keyspace, keyed by (name, type) rather
// than name alone, since an OVS bridge's name is independent of the
// kernel's netdevice namespace.
func (t InterfaceType) IsUserspace() bool {
	switch t {
	case TypeOvsBridge, TypeOvsInterface:
		return true
	default:
		return false
	}
}

// InterfaceState is the desired or observed administrative state of an
// interface.
type InterfaceState string

const (
	StateUp      InterfaceState = "up"
	StateDown    InterfaceState = "down"
	StateAbsent  InterfaceState = "absent"
	StateIgnore  InterfaceState = "ignore"
	StateUnknown InterfaceState = ""
)

func (s InterfaceState) String() string {
	if s == StateUnknown {
		return "unknown"
	}
	return string(s)
}
