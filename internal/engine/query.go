// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"context"

	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/nmstate"
)

// Query answers QueryNetworkState: Running merges the kernel's live view
// with every plugin's and overlays DHCP lease state; Saved returns the
// last persisted state verbatim.
func (e *Engine) Query(ctx context.Context, opt nmstate.QueryOption, logf LogSink) (nmstate.NetworkState, error) {
	switch opt.Kind {
	case nmstate.KindRunning:
		return e.queryRunning(ctx, logf)
	case nmstate.KindSaved:
		return readAppliedState()
	default:
		return nmstate.NetworkState{}, errs.Errorf(errs.KindNoSupport, "unsupported query kind %q", opt.Kind)
	}
}

func (e *Engine) queryRunning(ctx context.Context, logf LogSink) (nmstate.NetworkState, error) {
	state, err := e.kernel.QueryRunning(ctx)
	if err != nil {
		return nmstate.NetworkState{}, err
	}

	if e.plugins != nil {
		for _, pstate := range e.plugins.Query(ctx, nmstate.RunningQueryOption(), func(msg string) {
			if logf != nil {
				logf(msg)
			}
		}) {
			for _, iface := range pstate.Interfaces.All() {
				state.Interfaces.Set(iface)
			}
		}
	}

	if e.dhcp != nil {
		e.dhcp.Query(&state)
	}

	return state, nil
}
