// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package kernel

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sort"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/nmstate"
)

// LinuxAdapter implements Adapter using github.com/vishvananda/netlink and
// github.com/safchain/ethtool.
type LinuxAdapter struct {
	log *logging.Logger
}

// NewLinuxAdapter returns the real Linux-backed Adapter.
func NewLinuxAdapter() *LinuxAdapter {
	return &LinuxAdapter{log: logging.WithComponent("kernel")}
}

// QueryRunning lists every link, skips reserved names, and translates
// netlink attributes into a NetworkState.
func (a *LinuxAdapter) QueryRunning(ctx context.Context) (nmstate.NetworkState, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nmstate.NetworkState{}, errs.Wrap(err, errs.KindBug, "failed to list links")
	}

	et, etErr := ethtool.NewEthtool()
	if etErr != nil {
		a.log.Warn("ethtool not available", "error", etErr)
	} else {
		defer et.Close()
	}

	state := nmstate.NewNetworkState()
	for _, link := range links {
		name := link.Attrs().Name
		if nmstate.IsReservedName(name) {
			continue
		}
		iface, err := a.linkToInterface(link, et)
		if err != nil {
			a.log.Warn("failed to translate link", "name", name, "error", err)
			continue
		}
		state.Interfaces.Set(iface)
	}
	return state, nil
}

func (a *LinuxAdapter) linkToInterface(link netlink.Link, et *ethtool.Ethtool) (nmstate.Interface, error) {
	attrs := link.Attrs()
	base := nmstate.BaseInterface{
		Name:  attrs.Name,
		State: nmstate.StateDown,
	}
	base.KernelIndex = attrs.Index
	if attrs.Flags&net.FlagUp != 0 {
		base.State = nmstate.StateUp
	}
	if len(attrs.HardwareAddr) > 0 {
		mac := attrs.HardwareAddr.String()
		base.MacAddress = &mac
	}
	if attrs.MTU > 0 {
		mtu := uint64(attrs.MTU)
		base.MTU = &mtu
	}

	var iface nmstate.Interface
	switch l := link.(type) {
	case *netlink.Veth:
		base.Type = nmstate.TypeEthernet
		iface = nmstate.Interface{Base: base, Veth: &nmstate.VethConfig{Peer: l.PeerName}}
	case *netlink.Bridge:
		if attrs.Name == "lo" {
			base.Type = nmstate.TypeLoopback
			iface = nmstate.NewLoopback(base)
		} else {
			base.Type = nmstate.TypeOvsBridge
			iface = nmstate.Interface{Base: base}
		}
	default:
		switch link.Type() {
		case "device":
			if attrs.Name == "lo" {
				base.Type = nmstate.TypeLoopback
				iface = nmstate.NewLoopback(base)
			} else {
				base.Type = nmstate.TypeEthernet
				iface = nmstate.NewEthernet(base, a.ethernetConfig(attrs.Name, et))
			}
		default:
			base.Type = nmstate.TypeUnknown
			iface = nmstate.NewUnknown(base)
		}
	}

	v4, err := a.queryIPv4(link)
	if err != nil {
		return nmstate.Interface{}, err
	}
	iface.Base.IPv4 = v4
	v6, err := a.queryIPv6(link)
	if err != nil {
		return nmstate.Interface{}, err
	}
	iface.Base.IPv6 = v6

	return iface, nil
}

func (a *LinuxAdapter) ethernetConfig(name string, et *ethtool.Ethtool) *nmstate.EthernetConfig {
	if et == nil {
		return nil
	}
	vals, err := et.CmdGetMapped(name)
	if err != nil {
		return nil
	}
	cfg := &nmstate.EthernetConfig{}
	if speed, ok := vals["speed"]; ok {
		s := uint32(speed)
		cfg.Speed = &s
	}
	if duplex, ok := vals["duplex"]; ok {
		d := nmstate.DuplexHalf
		if duplex == 1 {
			d = nmstate.DuplexFull
		}
		cfg.Duplex = &d
	}
	if autoneg, ok := vals["autoneg"]; ok {
		an := autoneg != 0
		cfg.AutoNeg = &an
	}
	return cfg
}

func (a *LinuxAdapter) queryIPv4(link netlink.Link) (*nmstate.InterfaceIpv4, error) {
	addrs, err := netlink.AddrList(link, unix.AF_INET)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindBug, "failed to list IPv4 addresses")
	}
	ip := nmstate.NewInterfaceIpv4()
	enabled := len(addrs) > 0
	ip.Enabled = &enabled
	if !enabled {
		return ip, nil
	}
	for _, addr := range addrs {
		ipAddr := nmstate.InterfaceIpAddr{IP: addr.IP}
		ones, _ := addr.IPNet.Mask.Size()
		ipAddr.PrefixLength = uint8(ones)
		if addr.ValidLft > 0 {
			dyn := true
			ip.Dhcp = &dyn
			lft := fmt.Sprintf("%ds", addr.ValidLft)
			ipAddr.ValidLifeTime = &lft
		}
		ip.Addresses = append(ip.Addresses, ipAddr)
	}
	sortAddrs(ip.Addresses)
	return ip, nil
}

func (a *LinuxAdapter) queryIPv6(link netlink.Link) (*nmstate.InterfaceIpv6, error) {
	addrs, err := netlink.AddrList(link, unix.AF_INET6)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindBug, "failed to list IPv6 addresses")
	}
	ip := nmstate.NewInterfaceIpv6()
	enabled := len(addrs) > 0
	ip.Enabled = &enabled
	if !enabled {
		return ip, nil
	}
	for _, addr := range addrs {
		ipAddr := nmstate.InterfaceIpAddr{IP: addr.IP}
		ones, _ := addr.IPNet.Mask.Size()
		ipAddr.PrefixLength = uint8(ones)
		if addr.ValidLft > 0 {
			dyn := true
			ip.Autoconf = &dyn
			lft := fmt.Sprintf("%ds", addr.ValidLft)
			ipAddr.ValidLifeTime = &lft
		}
		ip.Addresses = append(ip.Addresses, ipAddr)
	}
	sortAddrs(ip.Addresses)
	return ip, nil
}

func sortAddrs(addrs []nmstate.InterfaceIpAddr) {
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].String() < addrs[j].String() })
}

// ApplyLinks applies admin state, MTU, MAC, and veth pair
// creation/deletion. ifaces must already be sorted by the caller
// (ascending EffectiveUpPriority); this method preserves that order.
func (a *LinuxAdapter) ApplyLinks(ctx context.Context, ifaces []nmstate.Interface, currents []*nmstate.Interface) error {
	for i, iface := range ifaces {
		var current *nmstate.Interface
		if i < len(currents) {
			current = currents[i]
		}
		if err := a.applyLinkChange(iface, current, ifaces); err != nil {
			return err
		}
	}
	return nil
}

func (a *LinuxAdapter) applyLinkChange(iface nmstate.Interface, current *nmstate.Interface, all []nmstate.Interface) error {
	if iface.Base.State == nmstate.StateAbsent {
		return a.removeLink(iface, current, all)
	}

	link, err := netlink.LinkByName(iface.Base.Name)
	if err != nil {
		if iface.Veth != nil {
			return a.createVeth(iface)
		}
		return errs.Wrap(err, errs.KindBug, fmt.Sprintf("interface %s does not exist and is not a veth request", iface.Base.Name))
	}

	if iface.Base.MTU != nil {
		if err := netlink.LinkSetMTU(link, int(*iface.Base.MTU)); err != nil {
			a.log.Warn("failed to set MTU", "iface", iface.Base.Name, "error", err)
		}
	}
	if iface.Base.MacAddress != nil {
		if hw, err := net.ParseMAC(*iface.Base.MacAddress); err == nil {
			if err := netlink.LinkSetHardwareAddr(link, hw); err != nil {
				a.log.Warn("failed to set MAC", "iface", iface.Base.Name, "error", err)
			}
		}
	}

	if iface.Base.State == nmstate.StateUp {
		return netlink.LinkSetUp(link)
	}
	return netlink.LinkSetDown(link)
}

// createVeth pins the calling goroutine to the daemon's own network
// namespace for the duration of the add, since both peers of a veth
// pair are created in the creator's current namespace and this must not
// drift to another namespace mid-call if the runtime reschedules the
// goroutine onto a different OS thread.
func (a *LinuxAdapter) createVeth(iface nmstate.Interface) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origin, err := netns.Get()
	if err != nil {
		return errs.Wrap(err, errs.KindBug, "get current network namespace")
	}
	defer origin.Close()
	if err := netns.Set(origin); err != nil {
		return errs.Wrap(err, errs.KindBug, "pin current network namespace")
	}

	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: iface.Base.Name},
		PeerName:  iface.Veth.Peer,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return errs.Wrap(err, errs.KindBug, fmt.Sprintf("failed to create veth pair %s/%s", iface.Base.Name, iface.Veth.Peer))
	}
	link, err := netlink.LinkByName(iface.Base.Name)
	if err != nil {
		return errs.Wrap(err, errs.KindBug, "veth created but not found")
	}
	if iface.Base.State == nmstate.StateUp {
		return netlink.LinkSetUp(link)
	}
	return nil
}

// removeLink deletes an absent interface, honoring the loopback and
// veth-peer-already-absent skip rules: loopback can't be deleted, and
// only the lexicographically-smaller name of a veth pair issues the
// kernel delete (the peer goes with it).
func (a *LinuxAdapter) removeLink(iface nmstate.Interface, current *nmstate.Interface, all []nmstate.Interface) error {
	if iface.Kind() == nmstate.TypeLoopback {
		a.log.Info("skipping removal of loopback interface", "name", iface.Base.Name)
		return nil
	}
	if current == nil {
		a.log.Info("skipping removal of interface that does not exist", "name", iface.Base.Name)
		return nil
	}
	if current.Veth != nil {
		peer := current.Veth.Peer
		if peer < current.Base.Name {
			for _, other := range all {
				if other.Base.Name == peer && other.Base.State == nmstate.StateAbsent {
					a.log.Info("skipping removal, veth peer already marked absent", "name", iface.Base.Name, "peer", peer)
					return nil
				}
			}
		}
	}
	link, err := netlink.LinkByName(iface.Base.Name)
	if err != nil {
		return nil
	}
	if err := netlink.LinkDel(link); err != nil {
		return errs.Wrap(err, errs.KindBug, fmt.Sprintf("failed to delete interface %s", iface.Base.Name))
	}
	return nil
}

// ApplyIPs flushes existing addresses that aren't in the desired set and
// adds the missing ones. Interfaces with DHCP/autoconf enabled are left
// alone; address assignment for those is the dhcp package's job.
func (a *LinuxAdapter) ApplyIPs(ctx context.Context, ifaces []nmstate.Interface, currents []*nmstate.Interface) error {
	for i, iface := range ifaces {
		var current *nmstate.Interface
		if i < len(currents) {
			current = currents[i]
		}
		if iface.Base.State == nmstate.StateAbsent {
			continue
		}
		if err := a.applyIPChange(iface, current); err != nil {
			return err
		}
	}
	return nil
}

func (a *LinuxAdapter) applyIPChange(iface nmstate.Interface, current *nmstate.Interface) error {
	link, err := netlink.LinkByName(iface.Base.Name)
	if err != nil {
		return nil // link not present yet, link pass will have logged it
	}
	if err := a.applyFamilyIPs(link, unix.AF_INET, iface.Base.IPv4); err != nil {
		return err
	}
	return a.applyFamilyIPsV6(link, iface.Base.IPv6)
}

func (a *LinuxAdapter) applyFamilyIPs(link netlink.Link, family int, ip *nmstate.InterfaceIpv4) error {
	if ip == nil || ip.IsAuto() {
		return nil
	}
	existing, err := netlink.AddrList(link, family)
	if err != nil {
		return errs.Wrap(err, errs.KindBug, "failed to list existing addresses")
	}
	want := make(map[string]bool, len(ip.Addresses))
	for _, addr := range ip.Addresses {
		want[addr.String()] = true
	}
	for _, addr := range existing {
		ones, _ := addr.IPNet.Mask.Size()
		key := fmt.Sprintf("%s/%d", addr.IP, ones)
		if !want[key] {
			_ = netlink.AddrDel(link, &addr)
		}
	}
	for _, addr := range ip.Addresses {
		nlAddr := &netlink.Addr{IPNet: &net.IPNet{IP: addr.IP, Mask: net.CIDRMask(int(addr.PrefixLength), 32)}}
		if err := netlink.AddrAdd(link, nlAddr); err != nil && !isExistsErr(err) {
			return errs.Wrap(err, errs.KindBug, fmt.Sprintf("failed to add address %s", addr))
		}
	}
	return nil
}

func (a *LinuxAdapter) applyFamilyIPsV6(link netlink.Link, ip *nmstate.InterfaceIpv6) error {
	if ip == nil || ip.IsAuto() {
		return nil
	}
	existing, err := netlink.AddrList(link, unix.AF_INET6)
	if err != nil {
		return errs.Wrap(err, errs.KindBug, "failed to list existing addresses")
	}
	want := make(map[string]bool, len(ip.Addresses))
	for _, addr := range ip.Addresses {
		want[addr.String()] = true
	}
	for _, addr := range existing {
		ones, _ := addr.IPNet.Mask.Size()
		key := fmt.Sprintf("%s/%d", addr.IP, ones)
		if !want[key] {
			_ = netlink.AddrDel(link, &addr)
		}
	}
	for _, addr := range ip.Addresses {
		nlAddr := &netlink.Addr{IPNet: &net.IPNet{IP: addr.IP, Mask: net.CIDRMask(int(addr.PrefixLength), 128)}}
		if err := netlink.AddrAdd(link, nlAddr); err != nil && !isExistsErr(err) {
			return errs.Wrap(err, errs.KindBug, fmt.Sprintf("failed to add address %s", addr))
		}
	}
	return nil
}

func isExistsErr(err error) bool {
	return err != nil && err.Error() == "file exists"
}
