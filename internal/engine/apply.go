// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"context"
	"time"

	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/merge"
	"grimm.is/netstated/internal/nmstate"
)

// Apply runs the full state-reconciliation pipeline: merge desired state
// against what's persisted and what's live, push it through the kernel,
// plugins and DHCP manager, verify with bounded retry, roll back on
// failure, persist on success.
func (e *Engine) Apply(ctx context.Context, desired nmstate.NetworkState, opt merge.ApplyOption, logf LogSink) (nmstate.NetworkState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := correlationID()
	log := e.log.With("apply-id", id)
	start := time.Now()

	diff, err := e.applyLocked(ctx, desired, opt, log, logf)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if e.metrics != nil {
		e.metrics.ObserveApply(outcome, time.Since(start))
	}
	return diff, err
}

func (e *Engine) applyLocked(ctx context.Context, desired nmstate.NetworkState, opt merge.ApplyOption, log *logging.Logger, logf LogSink) (nmstate.NetworkState, error) {
	if err := desired.ValidateSchemaVersion(); err != nil {
		return nmstate.NetworkState{}, err
	}

	priorApplied, err := readAppliedState()
	if err != nil {
		return nmstate.NetworkState{}, err
	}

	desired = nmstate.NormalizeVethToEthernet(desired)

	stateToSave := nmstate.MergeStates(priorApplied, desired)
	stateToApply := restrictToNames(stateToSave, desired.Interfaces)

	log.Info("applying merged state", "state", stateToApply)

	preApplyCurrent, err := e.queryRunning(ctx, logf)
	if err != nil {
		return nmstate.NetworkState{}, err
	}
	preApplyCurrent = nmstate.NormalizeVethToEthernet(preApplyCurrent)

	revert, err := merge.GenerateRevert(stateToApply, preApplyCurrent)
	if err != nil {
		return nmstate.NetworkState{}, err
	}

	merged, err := merge.Merge(stateToApply, preApplyCurrent, opt)
	if err != nil {
		return nmstate.NetworkState{}, err
	}

	if err := e.applyInner(ctx, merged, opt, logf); err != nil {
		log.Warn("failed to apply desired state, rolling back", "error", err)
		if rerr := e.rollback(ctx, revert, logf); rerr != nil {
			log.Error("rollback failed", "error", rerr)
		}
		if e.metrics != nil {
			e.metrics.RollbacksTotal.Inc()
		}
		return nmstate.NetworkState{}, err
	}

	if err := saveAppliedState(dropAbsent(stateToSave)); err != nil {
		log.Warn("BUG: failed to persist applied state", "error", err)
	}

	return merge.GenDiff(merged.GenStateForApply(), preApplyCurrent), nil
}

// applyInner drives the kernel, plugins and DHCP manager for one merged
// state, then verifies with bounded retry unless opt.NoVerify is set.
func (e *Engine) applyInner(ctx context.Context, merged merge.MergedNetworkState, opt merge.ApplyOption, logf LogSink) error {
	applyState := merged.GenStateForApply()

	ordered := nmstate.OrderedInterfaces(applyState.Interfaces)
	links := make([]nmstate.Interface, 0, len(ordered))
	currents := make([]*nmstate.Interface, 0, len(ordered))
	for _, iface := range ordered {
		links = append(links, iface)
		mi, _ := merged.Get(iface.Base.Name, iface.Kind())
		currents = append(currents, mi.Current)
	}

	if err := e.kernel.ApplyLinks(ctx, links, currents); err != nil {
		return err
	}
	if err := e.kernel.ApplyIPs(ctx, links, currents); err != nil {
		return err
	}

	if e.plugins != nil {
		e.plugins.Apply(ctx, applyState, opt, func(msg string) {
			if logf != nil {
				logf(msg)
			}
		})
	}

	if e.dhcp != nil {
		e.reconcileDHCP(applyState)
	}

	if opt.NoVerify {
		return nil
	}

	var lastErr error
	for i := 0; i < verifyRetryCount; i++ {
		post, err := e.queryRunning(ctx, logf)
		if err != nil {
			lastErr = err
		} else if verr := merged.Verify(post); verr != nil {
			lastErr = verr
		} else {
			return nil
		}
		if e.metrics != nil {
			e.metrics.VerifyRetriesTotal.Inc()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(verifyRetryInterval):
		}
	}
	return lastErr
}

// rollback re-applies revert over whatever's live now, with verification
// disabled: the goal is best-effort recovery, not a second guaranteed-good
// state.
func (e *Engine) rollback(ctx context.Context, revert nmstate.NetworkState, logf LogSink) error {
	opt := merge.ApplyOption{NoVerify: true}
	current, err := e.queryRunning(ctx, logf)
	if err != nil {
		return err
	}
	merged, err := merge.Merge(revert, current, opt)
	if err != nil {
		return err
	}
	return e.applyInner(ctx, merged, opt, logf)
}

// reconcileDHCP resolves desired DHCPv4 intent for every changed
// interface in applyState: up+auto gets a worker, anything else loses
// one.
func (e *Engine) reconcileDHCP(applyState nmstate.NetworkState) {
	for name, iface := range applyState.Interfaces.Kernel {
		if iface.Base.State == nmstate.StateUp && iface.Base.IPv4 != nil && iface.Base.IPv4.IsAuto() {
			e.dhcp.Ensure(iface.Base)
			continue
		}
		e.dhcp.Remove(name)
	}
}

// restrictToNames drops every interface from state that isn't also
// present (by name and, for userspace constructs, by type) in names, so
// one apply call only re-touches what it was asked to.
func restrictToNames(state nmstate.NetworkState, names nmstate.Interfaces) nmstate.NetworkState {
	out := nmstate.NewNetworkState()
	out.Version = state.Version
	out.Description = state.Description
	for _, iface := range state.Interfaces.All() {
		if _, ok := names.Get(iface.Base.Name, iface.Kind()); ok {
			out.Interfaces.Set(iface)
		}
	}
	return out
}
