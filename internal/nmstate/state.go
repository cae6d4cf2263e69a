// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmstate

import (
	"sort"

	"grimm.is/netstated/internal/errs"
)

// CurrentSchemaVersion is the only version value this daemon accepts.
const CurrentSchemaVersion = 1

// UserIfaceKey identifies a userspace (OVS) interface by name and type.
// Unlike a kernel netdevice, whose name is unique across the whole
// kernel namespace, a userspace construct's name lives in its own
// namespace: an OVS bridge and an OVS interface -- or an OVS construct
// and an unrelated kernel netdevice -- can legitimately share a name.
type UserIfaceKey struct {
	Name string
	Type InterfaceType
}

// Interfaces holds the two keyspaces this model splits: Kernel netdevices
// (ethernet, veth, loopback, unknown), addressed by name alone since the
// kernel guarantees that uniqueness; and User constructs (OVS bridges,
// OVS interfaces), addressed by (name, type), since their names don't
// share the kernel's namespace. Querying, merging and verifying must
// always look an interface up in the keyspace its type belongs to, never
// by name across both -- otherwise a userspace entry can silently
// clobber or shadow a same-named kernel entry.
type Interfaces struct {
	Kernel map[string]Interface
	User   map[UserIfaceKey]Interface
}

// NewInterfaces returns an empty Interfaces with both keyspaces
// allocated.
func NewInterfaces() Interfaces {
	return Interfaces{Kernel: map[string]Interface{}, User: map[UserIfaceKey]Interface{}}
}

// Clone returns a deep copy.
func (ifaces Interfaces) Clone() Interfaces {
	out := NewInterfaces()
	for k, v := range ifaces.Kernel {
		out.Kernel[k] = v.Clone()
	}
	for k, v := range ifaces.User {
		out.User[k] = v.Clone()
	}
	return out
}

// Len returns the interface count across both keyspaces.
func (ifaces Interfaces) Len() int { return len(ifaces.Kernel) + len(ifaces.User) }

// Get looks up iface by name within the keyspace kind belongs to: the
// User map for OVS constructs, the Kernel map otherwise.
func (ifaces Interfaces) Get(name string, kind InterfaceType) (Interface, bool) {
	if kind.IsUserspace() {
		iface, ok := ifaces.User[UserIfaceKey{Name: name, Type: kind}]
		return iface, ok
	}
	iface, ok := ifaces.Kernel[name]
	return iface, ok
}

// GetKernel looks up a kernel-keyspace interface by name alone. Used by
// callers -- DHCP chief among them -- that only ever address kernel
// netdevices and have no type to route on.
func (ifaces Interfaces) GetKernel(name string) (Interface, bool) {
	iface, ok := ifaces.Kernel[name]
	return iface, ok
}

// Set stores iface keyed by its own name and type, routed to whichever
// keyspace its Kind belongs to.
func (ifaces Interfaces) Set(iface Interface) {
	if iface.IsUserspace() {
		ifaces.User[UserIfaceKey{Name: iface.Base.Name, Type: iface.Kind()}] = iface
		return
	}
	ifaces.Kernel[iface.Base.Name] = iface
}

// Delete removes the entry addressed by (name, kind) from whichever
// keyspace kind belongs to.
func (ifaces Interfaces) Delete(name string, kind InterfaceType) {
	if kind.IsUserspace() {
		delete(ifaces.User, UserIfaceKey{Name: name, Type: kind})
		return
	}
	delete(ifaces.Kernel, name)
}

// All returns every interface across both keyspaces, in no particular
// order.
func (ifaces Interfaces) All() []Interface {
	out := make([]Interface, 0, ifaces.Len())
	for _, v := range ifaces.Kernel {
		out = append(out, v)
	}
	for _, v := range ifaces.User {
		out = append(out, v)
	}
	return out
}

// AllSorted returns every interface across both keyspaces sorted by
// name, ties (a kernel and a userspace entry sharing a name) broken by
// type, for deterministic wire output.
func (ifaces Interfaces) AllSorted() []Interface {
	out := ifaces.All()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base.Name != out[j].Base.Name {
			return out[i].Base.Name < out[j].Base.Name
		}
		return out[i].Base.Type < out[j].Base.Type
	})
	return out
}

// OrderedInterfaces returns every interface across both keyspaces sorted
// ascending by up-priority (UnsetPriority sorts last), ties broken by
// name then type for determinism since Go maps carry no insertion order
// of their own.
func OrderedInterfaces(ifaces Interfaces) []Interface {
	out := ifaces.All()
	sort.SliceStable(out, func(i, j int) bool {
		pi := out[i].Base.EffectiveUpPriority()
		pj := out[j].Base.EffectiveUpPriority()
		if pi != pj {
			return pi < pj
		}
		if out[i].Base.Name != out[j].Base.Name {
			return out[i].Base.Name < out[j].Base.Name
		}
		return out[i].Base.Type < out[j].Base.Type
	})
	return out
}

// NetworkState is the root value: a named, versioned set of interfaces.
type NetworkState struct {
	Version     *int       `yaml:"version,omitempty" json:"version,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Interfaces  Interfaces `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
}

// NewNetworkState returns an empty state.
func NewNetworkState() NetworkState {
	return NetworkState{Interfaces: NewInterfaces()}
}

// Clone returns a deep copy.
func (s NetworkState) Clone() NetworkState {
	out := s
	if s.Version != nil {
		v := *s.Version
		out.Version = &v
	}
	out.Interfaces = s.Interfaces.Clone()
	return out
}

// ValidateSchemaVersion rejects any version other than the current one.
func (s NetworkState) ValidateSchemaVersion() error {
	if s.Version != nil && *s.Version != CurrentSchemaVersion {
		return errs.Errorf(errs.KindInvalidSchemaVersion, "unsupported schema version %d, expected %d", *s.Version, CurrentSchemaVersion)
	}
	return nil
}

// NormalizeVethToEthernet rewrites every interface whose type is "veth"
// to "ethernet", the wire-compat alias the kernel adapter always reports
// under. Veth is always a kernel netdevice, never a userspace construct,
// so only the Kernel keyspace needs rewriting. Idempotent: applying it
// twice is the same as applying it once.
func NormalizeVethToEthernet(s NetworkState) NetworkState {
	out := s.Clone()
	for name, iface := range out.Interfaces.Kernel {
		if iface.Base.Type == TypeVeth {
			iface.Base.Type = TypeEthernet
			out.Interfaces.Kernel[name] = iface
		}
	}
	return out
}

// MergeStates returns base with every interface present in overlay merged
// on top of it -- inserted verbatim if base has no entry of that name (and
// type, for userspace constructs), field-merged onto the existing entry
// otherwise. This is the NetworkState-level counterpart to
// Interface.Merge, used both to fold a new desired state onto what's
// already persisted and, standalone, by the CLI's merge command.
func MergeStates(base, overlay NetworkState) NetworkState {
	out := base.Clone()
	if out.Interfaces.Kernel == nil || out.Interfaces.User == nil {
		out.Interfaces = NewInterfaces()
	}
	out.Version = overlay.Version
	if overlay.Description != "" {
		out.Description = overlay.Description
	}
	for _, iface := range overlay.Interfaces.All() {
		if cur, ok := out.Interfaces.Get(iface.Base.Name, iface.Kind()); ok {
			cur.Merge(iface)
			out.Interfaces.Set(cur)
		} else {
			out.Interfaces.Set(iface.Clone())
		}
	}
	return out
}

const (
	// ReservedIfaceOvsSystem and friends are never surfaced by the
	// kernel adapter's query path.
	ReservedIfaceOvsSystem = "ovs-system"
	ReservedIfaceOvsNetdev = "ovs-netdev"
	ReservedIfaceVti       = "vti"
)

// IsReservedName reports whether name is one the kernel adapter always
// skips during query.
func IsReservedName(name string) bool {
	switch name {
	case ReservedIfaceOvsSystem, ReservedIfaceOvsNetdev, ReservedIfaceVti:
		return true
	default:
		return false
	}
}
