// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmstate

import (
	"fmt"
	"net"
	"strings"

	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/logging"
)

const (
	ipv4PrefixMax = 32
	ipv6PrefixMax = 128
	forever       = "forever"
)

// DhcpState is the lifecycle of a DHCPv4 worker, round-tripping through a
// single wire string ("error:<msg>" for the Error arm).
type DhcpState struct {
	Phase string // wait-link-carrier | running | done | error
	Err   string
}

var (
	DhcpWaitLinkCarrier = DhcpState{Phase: "wait-link-carrier"}
	DhcpRunning         = DhcpState{Phase: "running"}
	DhcpDone            = DhcpState{Phase: "done"}
)

// DhcpError returns the Error(msg) arm.
func DhcpError(msg string) DhcpState { return DhcpState{Phase: "error", Err: msg} }

// String renders the wire form, e.g. "error:connection refused".
func (d DhcpState) String() string {
	if d.Phase == "error" {
		return "error:" + d.Err
	}
	if d.Phase == "" {
		return DhcpWaitLinkCarrier.Phase
	}
	return d.Phase
}

// MarshalYAML implements kebab-case wire serialization.
func (d DhcpState) MarshalYAML() (any, error) { return d.String(), nil }

// ParseDhcpState parses the wire string form back into a DhcpState.
func ParseDhcpState(s string) (DhcpState, error) {
	switch s {
	case "wait-link-carrier":
		return DhcpWaitLinkCarrier, nil
	case "running":
		return DhcpRunning, nil
	case "done":
		return DhcpDone, nil
	default:
		if msg, ok := strings.CutPrefix(s, "error:"); ok {
			return DhcpError(msg), nil
		}
		return DhcpState{}, errs.Errorf(errs.KindInvalidArgument,
			"invalid DHCP state %q, valid values are wait-link-carrier, running, done, error:<message>", s)
	}
}

// InterfaceIpAddr is a single IP address entry.
type InterfaceIpAddr struct {
	IP                net.IP  `yaml:"ip" json:"ip"`
	PrefixLength      uint8   `yaml:"prefix-length" json:"prefix-length"`
	ValidLifeTime     *string `yaml:"valid-life-time,omitempty" json:"valid-life-time,omitempty"`
	PreferredLifeTime *string `yaml:"preferred-life-time,omitempty" json:"preferred-life-time,omitempty"`
}

// IsAuto reports whether this address is dynamic: it carries a
// valid-life-time other than "forever".
func (a InterfaceIpAddr) IsAuto() bool {
	return a.ValidLifeTime != nil && *a.ValidLifeTime != forever
}

func (a InterfaceIpAddr) String() string {
	return fmt.Sprintf("%s/%d", a.IP, a.PrefixLength)
}

// ParseInterfaceIpAddr parses a "1.2.3.4/24" or bare "1.2.3.4" CIDR-ish
// literal, defaulting the prefix length to the address family's width.
func ParseInterfaceIpAddr(s string) (InterfaceIpAddr, error) {
	parts := strings.SplitN(s, "/", 2)
	ip := net.ParseIP(parts[0])
	if ip == nil {
		return InterfaceIpAddr{}, errs.Errorf(errs.KindInvalidArgument, "invalid IP address %q", parts[0])
	}
	isV4 := ip.To4() != nil
	prefix := uint8(ipv6PrefixMax)
	if isV4 {
		prefix = ipv4PrefixMax
	}
	if len(parts) == 2 && parts[1] != "" {
		var n int
		if _, err := fmt.Sscanf(parts[1], "%d", &n); err != nil || n < 0 || n > 255 {
			return InterfaceIpAddr{}, errs.Errorf(errs.KindInvalidArgument, "invalid IP address %q: bad prefix length", s)
		}
		prefix = uint8(n)
	}
	return InterfaceIpAddr{IP: ip, PrefixLength: prefix}, nil
}

func (a InterfaceIpAddr) clone() InterfaceIpAddr {
	out := a
	out.IP = append(net.IP(nil), a.IP...)
	out.ValidLifeTime = clonePtr(a.ValidLifeTime)
	out.PreferredLifeTime = clonePtr(a.PreferredLifeTime)
	return out
}

func cloneAddrs(in []InterfaceIpAddr) []InterfaceIpAddr {
	if in == nil {
		return nil
	}
	out := make([]InterfaceIpAddr, len(in))
	for i, a := range in {
		out[i] = a.clone()
	}
	return out
}

// InterfaceIpv4 is the IPv4 configuration section of an interface.
type InterfaceIpv4 struct {
	Enabled   *bool             `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Dhcp      *bool             `yaml:"dhcp,omitempty" json:"dhcp,omitempty"`
	DhcpState *DhcpState        `yaml:"dhcp-state,omitempty" json:"dhcp-state,omitempty"`
	Addresses []InterfaceIpAddr `yaml:"address,omitempty" json:"address,omitempty"`
}

// NewInterfaceIpv4 returns IPv4 disabled, matching the Default impl of
// the original state library.
func NewInterfaceIpv4() *InterfaceIpv4 {
	f := false
	return &InterfaceIpv4{Enabled: &f}
}

func (i InterfaceIpv4) IsEnabled() bool { return i.Enabled == nil || *i.Enabled }
func (i InterfaceIpv4) IsAuto() bool    { return i.IsEnabled() && i.Dhcp != nil && *i.Dhcp }
func (i InterfaceIpv4) IsStatic() bool {
	return i.IsEnabled() && !i.IsAuto() && len(i.Addresses) > 0
}

// Clone returns a deep copy.
func (i InterfaceIpv4) Clone() InterfaceIpv4 {
	out := i
	out.Enabled = clonePtr(i.Enabled)
	out.Dhcp = clonePtr(i.Dhcp)
	if i.DhcpState != nil {
		d := *i.DhcpState
		out.DhcpState = &d
	}
	out.Addresses = cloneAddrs(i.Addresses)
	return out
}

// Merge overlays other onto i: other's fields win whenever set.
func (i *InterfaceIpv4) Merge(other InterfaceIpv4) {
	if other.Enabled != nil {
		i.Enabled = clonePtr(other.Enabled)
	}
	if other.Dhcp != nil {
		i.Dhcp = clonePtr(other.Dhcp)
	}
	if other.Addresses != nil {
		i.Addresses = cloneAddrs(other.Addresses)
	}
}

// Sanitize applies the apply-time normalization rules: clear dhcp-state,
// reject cross-family/oversize-prefix addresses, strip lifetimes from
// static addresses, and clear dhcp/addresses entirely when disabled.
func (i *InterfaceIpv4) Sanitize() error {
	i.DhcpState = nil
	if i.IsAuto() {
		for _, a := range i.Addresses {
			if !a.IsAuto() {
				logging.WithComponent("nmstate").Info("static address defined when dynamic IP is enabled", "addr", a.String())
			}
		}
	}
	for _, a := range i.Addresses {
		if a.IP.To4() == nil {
			return errs.Errorf(errs.KindInvalidArgument, "got IPv6 address %s in ipv4 config section", a)
		}
		if int(a.PrefixLength) > ipv4PrefixMax {
			return errs.Errorf(errs.KindInvalidArgument,
				"invalid IPv4 network prefix length '%d', should be in the range of 0 to %d", a.PrefixLength, ipv4PrefixMax)
		}
	}
	kept := i.Addresses[:0:0]
	for _, a := range i.Addresses {
		if a.IsAuto() {
			logging.WithComponent("nmstate").Info("ignoring dynamic address", "addr", a.String())
			continue
		}
		a.ValidLifeTime = nil
		a.PreferredLifeTime = nil
		kept = append(kept, a)
	}
	i.Addresses = kept

	if !i.IsEnabled() {
		i.Dhcp = nil
		i.Addresses = nil
	}
	return nil
}

// SanitizeCurrentForVerify fills dhcp=false/addresses=[] defaults so a
// verify comparison doesn't treat "unset" and "empty" as different.
func (i *InterfaceIpv4) SanitizeCurrentForVerify() {
	if i.Dhcp == nil {
		f := false
		i.Dhcp = &f
	}
	if i.Addresses == nil {
		i.Addresses = []InterfaceIpAddr{}
	}
}

// InterfaceIpv6 is the IPv6 configuration section of an interface.
type InterfaceIpv6 struct {
	Enabled   *bool             `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Dhcp      *bool             `yaml:"dhcp,omitempty" json:"dhcp,omitempty"`
	Autoconf  *bool             `yaml:"autoconf,omitempty" json:"autoconf,omitempty"`
	Addresses []InterfaceIpAddr `yaml:"address,omitempty" json:"address,omitempty"`
}

// NewInterfaceIpv6 returns IPv6 disabled.
func NewInterfaceIpv6() *InterfaceIpv6 {
	f := false
	return &InterfaceIpv6{Enabled: &f}
}

func (i InterfaceIpv6) IsEnabled() bool { return i.Enabled == nil || *i.Enabled }
func (i InterfaceIpv6) IsAuto() bool {
	return i.IsEnabled() && ((i.Dhcp != nil && *i.Dhcp) || (i.Autoconf != nil && *i.Autoconf))
}
func (i InterfaceIpv6) IsStatic() bool {
	return i.IsEnabled() && !i.IsAuto() && len(i.Addresses) > 0
}

// Clone returns a deep copy.
func (i InterfaceIpv6) Clone() InterfaceIpv6 {
	out := i
	out.Enabled = clonePtr(i.Enabled)
	out.Dhcp = clonePtr(i.Dhcp)
	out.Autoconf = clonePtr(i.Autoconf)
	out.Addresses = cloneAddrs(i.Addresses)
	return out
}

// Merge overlays other onto i.
func (i *InterfaceIpv6) Merge(other InterfaceIpv6) {
	if other.Enabled != nil {
		i.Enabled = clonePtr(other.Enabled)
	}
	if other.Dhcp != nil {
		i.Dhcp = clonePtr(other.Dhcp)
	}
	if other.Autoconf != nil {
		i.Autoconf = clonePtr(other.Autoconf)
	}
	if other.Addresses != nil {
		i.Addresses = cloneAddrs(other.Addresses)
	}
}

// Sanitize applies the IPv6 apply-time normalization rules: reject
// cross-family/oversize-prefix addresses, drop dynamic and link-local
// addresses, strip lifetimes, and clear everything when disabled.
func (i *InterfaceIpv6) Sanitize() error {
	for _, a := range i.Addresses {
		if a.IsAuto() {
			logging.WithComponent("nmstate").Info("ignoring auto IP address", "addr", a.String())
		}
		if a.IP.To4() != nil {
			return errs.Errorf(errs.KindInvalidArgument, "got IPv4 address %s in ipv6 config section", a)
		}
		if int(a.PrefixLength) > ipv6PrefixMax {
			return errs.Errorf(errs.KindInvalidArgument,
				"invalid IPv6 network prefix length '%d', should be in the range of 0 to %d", a.PrefixLength, ipv6PrefixMax)
		}
	}
	kept := i.Addresses[:0:0]
	for _, a := range i.Addresses {
		if a.IsAuto() {
			logging.WithComponent("nmstate").Info("ignoring dynamic address", "addr", a.String())
			continue
		}
		kept = append(kept, a)
	}
	i.Addresses = kept

	kept = i.Addresses[:0:0]
	for _, a := range i.Addresses {
		if ip := a.IP.To16(); ip != nil && a.IP.To4() == nil && ip.IsLinkLocalUnicast() {
			logging.WithComponent("nmstate").Warn("ignoring IPv6 link local address", "addr", a.String())
			continue
		}
		kept = append(kept, a)
	}
	i.Addresses = kept

	for idx := range i.Addresses {
		i.Addresses[idx].ValidLifeTime = nil
		i.Addresses[idx].PreferredLifeTime = nil
	}

	if !i.IsEnabled() {
		i.Dhcp = nil
		i.Autoconf = nil
		i.Addresses = nil
	}
	return nil
}

// SanitizeCurrentForVerify fills dhcp=false/addresses=[] defaults.
func (i *InterfaceIpv6) SanitizeCurrentForVerify() {
	if i.Dhcp == nil {
		f := false
		i.Dhcp = &f
	}
	if i.Addresses == nil {
		i.Addresses = []InterfaceIpAddr{}
	}
}
