// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmstate

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// wireInterface is the flattened, kebab-case on-wire shape of Interface:
// BaseInterface's fields plus whichever variant section applies. Go has
// no native flatten-a-struct-into-its-parent-map serde feature, so the
// tagged union is (de)serialized through this explicit shadow type
// instead of reflection tricks.
type wireInterface struct {
	Name                string         `yaml:"name" json:"name"`
	Type                InterfaceType  `yaml:"type" json:"type"`
	State               InterfaceState `yaml:"state,omitempty" json:"state,omitempty"`
	UpPriority          uint32         `yaml:"up-priority,omitempty" json:"up-priority,omitempty"`
	Controller          *string        `yaml:"controller,omitempty" json:"controller,omitempty"`
	ControllerType      *InterfaceType `yaml:"controller-type,omitempty" json:"controller-type,omitempty"`
	MacAddress          *string        `yaml:"mac-address,omitempty" json:"mac-address,omitempty"`
	PermanentMacAddress *string        `yaml:"permanent-mac-address,omitempty" json:"permanent-mac-address,omitempty"`
	MTU                 *uint64        `yaml:"mtu,omitempty" json:"mtu,omitempty"`
	MinMTU              *uint64        `yaml:"min-mtu,omitempty" json:"min-mtu,omitempty"`
	MaxMTU              *uint64        `yaml:"max-mtu,omitempty" json:"max-mtu,omitempty"`
	IPv4                *InterfaceIpv4 `yaml:"ipv4,omitempty" json:"ipv4,omitempty"`
	IPv6                *InterfaceIpv6 `yaml:"ipv6,omitempty" json:"ipv6,omitempty"`

	Ethernet  *EthernetConfig  `yaml:"ethernet,omitempty" json:"ethernet,omitempty"`
	Veth      *VethConfig      `yaml:"veth,omitempty" json:"veth,omitempty"`
	OvsBridge *OvsBridgeConfig `yaml:"bridge,omitempty" json:"bridge,omitempty"`
}

func (f Interface) toWire() wireInterface {
	b := f.Base
	return wireInterface{
		Name: b.Name, Type: b.Type, State: b.State, UpPriority: b.UpPriority,
		Controller: b.Controller, ControllerType: b.ControllerType,
		MacAddress: b.MacAddress, PermanentMacAddress: b.PermanentMacAddress,
		MTU: b.MTU, MinMTU: b.MinMTU, MaxMTU: b.MaxMTU,
		IPv4: b.IPv4, IPv6: b.IPv6,
		Ethernet: f.Ethernet, Veth: f.Veth, OvsBridge: f.OvsBridge,
	}
}

func (w wireInterface) toInterface() Interface {
	t := w.Type
	if t == "" {
		t = TypeUnknown
	}
	base := BaseInterface{
		Name: w.Name, Type: t, State: w.State, UpPriority: w.UpPriority,
		Controller: w.Controller, ControllerType: w.ControllerType,
		MacAddress: w.MacAddress, PermanentMacAddress: w.PermanentMacAddress,
		MTU: w.MTU, MinMTU: w.MinMTU, MaxMTU: w.MaxMTU,
		IPv4: w.IPv4, IPv6: w.IPv6,
	}
	// "absent" entries carry only name/type/state; drop any stray
	// variant-specific sections a hand-edited file might include.
	if base.State == StateAbsent {
		return Interface{Base: base}
	}
	return Interface{Base: base, Ethernet: w.Ethernet, Veth: w.Veth, OvsBridge: w.OvsBridge}
}

func (f Interface) MarshalYAML() (any, error) { return f.toWire(), nil }

func (f *Interface) UnmarshalYAML(value *yaml.Node) error {
	var w wireInterface
	if err := value.Decode(&w); err != nil {
		return err
	}
	*f = w.toInterface()
	return nil
}

func (f Interface) MarshalJSON() ([]byte, error) { return json.Marshal(f.toWire()) }

func (f *Interface) UnmarshalJSON(data []byte) error {
	var w wireInterface
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*f = w.toInterface()
	return nil
}

// wireNetworkState mirrors NetworkState but carries interfaces as the
// on-wire list, not the in-memory name-keyed map.
type wireNetworkState struct {
	Version     *int        `yaml:"version,omitempty" json:"version,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Interfaces  []Interface `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
}

func (s NetworkState) toWireState() wireNetworkState {
	out := wireNetworkState{Version: s.Version, Description: s.Description}
	out.Interfaces = s.Interfaces.AllSorted()
	return out
}

func (w wireNetworkState) toNetworkState() NetworkState {
	ifaces := NewInterfaces()
	for _, f := range w.Interfaces {
		ifaces.Set(f)
	}
	return NetworkState{Version: w.Version, Description: w.Description, Interfaces: ifaces}
}

func (s NetworkState) MarshalYAML() (any, error) { return s.toWireState(), nil }

func (s *NetworkState) UnmarshalYAML(value *yaml.Node) error {
	var w wireNetworkState
	if err := value.Decode(&w); err != nil {
		return err
	}
	*s = w.toNetworkState()
	return nil
}

func (s NetworkState) MarshalJSON() ([]byte, error) { return json.Marshal(s.toWireState()) }

func (s *NetworkState) UnmarshalJSON(data []byte) error {
	var w wireNetworkState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = w.toNetworkState()
	return nil
}
