// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dhcp

import (
	"sync"

	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/metrics"
	"grimm.is/netstated/internal/nmstate"
)

// Manager owns one Worker per DHCPv4-enabled kernel interface. All
// mutation goes through a single mutex guarding the worker map; this is
// the one piece of shared mutable state the apply engine touches outside
// its own per-call locals (design note §9).
type Manager struct {
	mu      sync.Mutex
	workers map[string]*Worker
	apply   ApplyFunc
	metrics *metrics.DHCP
	log     *logging.Logger
	dial    func(nmstate.BaseInterface) (client, error)
}

// NewManager returns a Manager whose workers call apply to push lease
// updates back through the kernel adapter.
func NewManager(apply ApplyFunc, m *metrics.DHCP) *Manager {
	return &Manager{
		workers: map[string]*Worker{},
		apply:   apply,
		metrics: m,
		log:     logging.WithComponent("dhcp"),
		dial:    dialClient,
	}
}

// Ensure starts a worker for base.Name. A worker already running under
// that name is stopped and replaced.
func (m *Manager) Ensure(base nmstate.BaseInterface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.workers[base.Name]; ok {
		existing.Stop()
	}
	m.workers[base.Name] = newWorker(base, m.apply, m.metrics, m.log, m.dial)
}

// Remove terminates and forgets the worker for name, if any. Termination
// is cooperative: closing the quit channel causes the worker's loop to
// exit at its next wake.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	w, ok := m.workers[name]
	if ok {
		delete(m.workers, name)
	}
	m.mu.Unlock()
	if ok {
		w.Stop()
	}
}

// Shutdown stops every worker, used when the daemon itself is exiting.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.workers = map[string]*Worker{}
	m.mu.Unlock()
	for _, w := range workers {
		w.Stop()
	}
}

// Query overlays the live DhcpState of every worker onto state, enabling
// ipv4/dhcp and filling dhcp-state for each interface that has one.
func (m *Manager) Query(state *nmstate.NetworkState) {
	m.mu.Lock()
	snapshot := make(map[string]*Worker, len(m.workers))
	for k, v := range m.workers {
		snapshot[k] = v
	}
	m.mu.Unlock()

	for name, w := range snapshot {
		iface, ok := state.Interfaces.GetKernel(name)
		if !ok {
			continue
		}
		if iface.Base.IPv4 == nil {
			iface.Base.IPv4 = nmstate.NewInterfaceIpv4()
		}
		enabled := true
		dhcp := true
		s := w.State()
		iface.Base.IPv4.Enabled = &enabled
		iface.Base.IPv4.Dhcp = &dhcp
		iface.Base.IPv4.DhcpState = &s
		state.Interfaces.Set(iface)
	}
}

// Has reports whether a worker is currently running for name.
func (m *Manager) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.workers[name]
	return ok
}
