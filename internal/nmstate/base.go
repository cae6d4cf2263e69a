// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmstate

import "math"

// UnsetPriority is the sentinel up-priority meaning "let the engine pick",
// sorted last (ascending order) so explicitly-prioritized interfaces
// always come first.
const UnsetPriority uint32 = math.MaxUint32

// BaseInterface carries the fields common to every Interface variant.
type BaseInterface struct {
	Name               string         `yaml:"name" json:"name"`
	Type               InterfaceType  `yaml:"type" json:"type"`
	State              InterfaceState `yaml:"state,omitempty" json:"state,omitempty"`
	UpPriority         uint32         `yaml:"up-priority,omitempty" json:"up-priority,omitempty"`
	Controller         *string        `yaml:"controller,omitempty" json:"controller,omitempty"`
	ControllerType     *InterfaceType `yaml:"controller-type,omitempty" json:"controller-type,omitempty"`
	MacAddress         *string        `yaml:"mac-address,omitempty" json:"mac-address,omitempty"`
	PermanentMacAddress *string       `yaml:"permanent-mac-address,omitempty" json:"permanent-mac-address,omitempty"`
	MTU                *uint64        `yaml:"mtu,omitempty" json:"mtu,omitempty"`
	MinMTU             *uint64        `yaml:"min-mtu,omitempty" json:"min-mtu,omitempty"`
	MaxMTU             *uint64        `yaml:"max-mtu,omitempty" json:"max-mtu,omitempty"`
	IPv4               *InterfaceIpv4 `yaml:"ipv4,omitempty" json:"ipv4,omitempty"`
	IPv6               *InterfaceIpv6 `yaml:"ipv6,omitempty" json:"ipv6,omitempty"`

	// KernelIndex is populated only by the kernel adapter's query path; it
	// is never accepted from a caller-supplied desired state, and exists
	// so merge can hand the adapter an addressing key even when the
	// caller never named one.
	KernelIndex int `yaml:"-" json:"-"`
}

// NewBaseInterface returns a BaseInterface in the "up" state, matching the
// constructor the original state library uses for synthesized interfaces.
func NewBaseInterface(name string, t InterfaceType) BaseInterface {
	return BaseInterface{Name: name, Type: t, State: StateUp}
}

// Clone returns a deep copy with no aliasing of the pointer fields.
func (b BaseInterface) Clone() BaseInterface {
	out := b
	out.Controller = clonePtr(b.Controller)
	out.ControllerType = clonePtr(b.ControllerType)
	out.MacAddress = clonePtr(b.MacAddress)
	out.PermanentMacAddress = clonePtr(b.PermanentMacAddress)
	out.MTU = clonePtr(b.MTU)
	out.MinMTU = clonePtr(b.MinMTU)
	out.MaxMTU = clonePtr(b.MaxMTU)
	if b.IPv4 != nil {
		c := b.IPv4.Clone()
		out.IPv4 = &c
	}
	if b.IPv6 != nil {
		c := b.IPv6.Clone()
		out.IPv6 = &c
	}
	return out
}

// CloneNameTypeOnly returns a minimal clone carrying just name, type and
// an "up" state, used when building a bare addressing stub.
func (b BaseInterface) CloneNameTypeOnly() BaseInterface {
	return BaseInterface{Name: b.Name, Type: b.Type, State: StateUp}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Merge overlays other onto b field-wise: other wins except where its
// value is the zero/absent sentinel, with two additional guards: an
// Unknown type in other never overrides b's type, and an Ethernet type in
// other never downgrades a Veth type already in b.
func (b *BaseInterface) Merge(other BaseInterface) {
	if !(other.Type.IsUnknown() || (other.Type == TypeEthernet && b.Type == TypeVeth)) {
		b.Type = other.Type
	}
	if other.State != StateUnknown {
		b.State = other.State
	}
	if other.UpPriority != 0 {
		b.UpPriority = other.UpPriority
	}
	if other.Controller != nil {
		b.Controller = clonePtr(other.Controller)
	}
	if other.ControllerType != nil {
		b.ControllerType = clonePtr(other.ControllerType)
	}
	if other.MacAddress != nil {
		b.MacAddress = clonePtr(other.MacAddress)
	}
	if other.PermanentMacAddress != nil {
		b.PermanentMacAddress = clonePtr(other.PermanentMacAddress)
	}
	if other.MTU != nil {
		b.MTU = clonePtr(other.MTU)
	}
	if other.MinMTU != nil {
		b.MinMTU = clonePtr(other.MinMTU)
	}
	if other.MaxMTU != nil {
		b.MaxMTU = clonePtr(other.MaxMTU)
	}
	switch {
	case b.IPv4 == nil && other.IPv4 != nil:
		c := other.IPv4.Clone()
		b.IPv4 = &c
	case b.IPv4 != nil && other.IPv4 != nil:
		b.IPv4.Merge(*other.IPv4)
	}
	switch {
	case b.IPv6 == nil && other.IPv6 != nil:
		c := other.IPv6.Clone()
		b.IPv6 = &c
	case b.IPv6 != nil && other.IPv6 != nil:
		b.IPv6.Merge(*other.IPv6)
	}
}

// Sanitize sanitizes the embedded IP configs. isDesired is threaded
// through so future iface-specific rules can distinguish desired from
// current, mirroring the teacher's signature even though the IP sanitize
// rules themselves don't currently need it.
func (b *BaseInterface) Sanitize(isDesired bool) error {
	if b.IPv4 != nil {
		if err := b.IPv4.Sanitize(); err != nil {
			return err
		}
	}
	if b.IPv6 != nil {
		if err := b.IPv6.Sanitize(); err != nil {
			return err
		}
	}
	return nil
}

// SanitizeForVerify fills in the current-side defaults (dhcp=false,
// addresses=[]) so comparisons against a query result don't spuriously
// fail on "unset vs empty".
func (b *BaseInterface) SanitizeForVerify() {
	if b.IPv4 != nil {
		b.IPv4.SanitizeCurrentForVerify()
	}
	if b.IPv6 != nil {
		b.IPv6.SanitizeCurrentForVerify()
	}
}

// EffectiveUpPriority returns UpPriority, or UnsetPriority if it was left
// at its zero value, for use as a sort key.
func (b BaseInterface) EffectiveUpPriority() uint32 {
	if b.UpPriority == 0 {
		return UnsetPriority
	}
	return b.UpPriority
}
