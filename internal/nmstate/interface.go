// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmstate

import "grimm.is/netstated/internal/errs"

// EthernetDuplex is the negotiated or requested duplex mode.
type EthernetDuplex string

const (
	DuplexFull EthernetDuplex = "full"
	DuplexHalf EthernetDuplex = "half"
)

// EthernetConfig carries ethernet-specific link settings, queried via
// ethtool and optionally set by the caller.
type EthernetConfig struct {
	AutoNeg *bool           `yaml:"auto-negotiation,omitempty" json:"auto-negotiation,omitempty"`
	Speed   *uint32         `yaml:"speed,omitempty" json:"speed,omitempty"`
	Duplex  *EthernetDuplex `yaml:"duplex,omitempty" json:"duplex,omitempty"`
}

func (c *EthernetConfig) clone() *EthernetConfig {
	if c == nil {
		return nil
	}
	out := &EthernetConfig{AutoNeg: clonePtr(c.AutoNeg), Speed: clonePtr(c.Speed)}
	if c.Duplex != nil {
		d := *c.Duplex
		out.Duplex = &d
	}
	return out
}

// VethConfig names the peer of a veth pair.
type VethConfig struct {
	Peer string `yaml:"peer" json:"peer"`
}

// OvsBridgePort is one port of an OVS bridge.
type OvsBridgePort struct {
	Name string `yaml:"name" json:"name"`
}

// OvsBridgeConfig lists the ports of an OVS bridge.
type OvsBridgeConfig struct {
	Ports []OvsBridgePort `yaml:"port,omitempty" json:"port,omitempty"`
}

func (c *OvsBridgeConfig) clone() *OvsBridgeConfig {
	if c == nil {
		return nil
	}
	out := &OvsBridgeConfig{}
	if c.Ports != nil {
		out.Ports = append([]OvsBridgePort(nil), c.Ports...)
	}
	return out
}

// Interface is a closed tagged union over the interface variants this
// daemon understands. Kind selects which of the variant-specific fields
// below is populated; BaseInterface is always present.
type Interface struct {
	Base BaseInterface

	Ethernet  *EthernetConfig  // Kind == TypeEthernet
	Veth      *VethConfig      // Kind == TypeEthernet, veth peer creation
	OvsBridge *OvsBridgeConfig // Kind == TypeOvsBridge
}

// Kind returns the interface's type tag.
func (f Interface) Kind() InterfaceType { return f.Base.Type }

// IsVirtual reports whether the interface can legitimately vanish
// (OVS constructs) as opposed to physical hardware (ethernet, loopback).
func (f Interface) IsVirtual() bool {
	switch f.Kind() {
	case TypeOvsBridge, TypeOvsInterface:
		return true
	default:
		return false
	}
}

// IsUserspace reports whether the interface is managed by a plugin rather
// than the kernel adapter.
func (f Interface) IsUserspace() bool { return f.Kind().IsUserspace() }

// Clone returns a deep copy of f.
func (f Interface) Clone() Interface {
	out := Interface{Base: f.Base.Clone()}
	out.Ethernet = f.Ethernet.clone()
	if f.Veth != nil {
		v := *f.Veth
		out.Veth = &v
	}
	out.OvsBridge = f.OvsBridge.clone()
	return out
}

// CloneNameTypeOnly clones only name/type, forcing state to up — used to
// build a bare addressing key for the kernel adapter.
func (f Interface) CloneNameTypeOnly() Interface {
	return Interface{Base: f.Base.CloneNameTypeOnly()}
}

// Merge overlays other onto f, field-wise, including the variant-specific
// sections.
func (f *Interface) Merge(other Interface) {
	f.Base.Merge(other.Base)
	if other.Ethernet != nil {
		f.Ethernet = other.Ethernet.clone()
	}
	if other.Veth != nil {
		v := *other.Veth
		f.Veth = &v
	}
	if other.OvsBridge != nil {
		f.OvsBridge = other.OvsBridge.clone()
	}
}

// SanitizeIfaceSpecific applies the per-variant sanitize rule: an
// ethernet interface going "up" that doesn't exist yet on the current
// side and carries no veth section cannot be created out of thin air.
func (f *Interface) SanitizeIfaceSpecific(current *Interface) error {
	if f.Kind() == TypeEthernet && f.Base.State == StateUp && current == nil && f.Veth == nil {
		return errs.Errorf(errs.KindInvalidArgument,
			"interface %s does not exist and veth section is not defined to create it", f.Base.Name)
	}
	return nil
}

// NewEthernet builds a plain (non-veth) ethernet interface.
func NewEthernet(base BaseInterface, cfg *EthernetConfig) Interface {
	base.Type = TypeEthernet
	return Interface{Base: base, Ethernet: cfg}
}

// NewVeth builds an ethernet interface with a veth peer, the variant used
// to request creation of a new veth pair.
func NewVeth(base BaseInterface, peer string) Interface {
	base.Type = TypeEthernet
	return Interface{Base: base, Veth: &VethConfig{Peer: peer}}
}

// NewLoopback builds a loopback interface.
func NewLoopback(base BaseInterface) Interface {
	base.Type = TypeLoopback
	return Interface{Base: base}
}

// NewOvsBridge builds an OVS bridge interface with the given ports.
func NewOvsBridge(base BaseInterface, ports []OvsBridgePort) Interface {
	base.Type = TypeOvsBridge
	return Interface{Base: base, OvsBridge: &OvsBridgeConfig{Ports: ports}}
}

// NewOvsInterface builds a bare OVS system interface.
func NewOvsInterface(base BaseInterface) Interface {
	base.Type = TypeOvsInterface
	return Interface{Base: base}
}

// NewUnknown builds a catch-all interface for unsupported kernel types.
func NewUnknown(base BaseInterface) Interface {
	if base.Type == "" {
		base.Type = TypeUnknown
	}
	return Interface{Base: base}
}
