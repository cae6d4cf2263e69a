// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"grimm.is/netstated/internal/errs"
	"grimm.is/netstated/internal/nmstate"
)

// InternalStateDir holds netstated's own persisted state, separate from
// any config a plugin or the caller manages itself. A package-level var,
// not a const, so tests can point it at a scratch directory instead of
// the real system path.
var InternalStateDir = "/etc/NetworkManager/states/internal"

// AppliedStatePath is where the last successfully applied state is saved.
func AppliedStatePath() string {
	return filepath.Join(InternalStateDir, "applied.yml")
}

// readAppliedState loads the persisted state, returning an empty state if
// no file has been saved yet.
func readAppliedState() (nmstate.NetworkState, error) {
	content, err := os.ReadFile(AppliedStatePath())
	if os.IsNotExist(err) {
		return nmstate.NewNetworkState(), nil
	}
	if err != nil {
		return nmstate.NetworkState{}, errs.Wrapf(err, errs.KindDaemonFailure, "read applied state %s", AppliedStatePath())
	}
	var state nmstate.NetworkState
	if err := yaml.Unmarshal(content, &state); err != nil {
		return nmstate.NetworkState{}, errs.Wrapf(err, errs.KindBug, "corrupted applied state %s, not valid NetworkState YAML", AppliedStatePath())
	}
	if state.Interfaces.Kernel == nil || state.Interfaces.User == nil {
		state.Interfaces = nmstate.NewInterfaces()
	}
	return state, nil
}

// saveAppliedState persists state, creating the internal state directory
// if this is the first apply.
func saveAppliedState(state nmstate.NetworkState) error {
	if err := os.MkdirAll(InternalStateDir, 0o755); err != nil {
		return errs.Wrapf(err, errs.KindDaemonFailure, "create dir %s", InternalStateDir)
	}
	out, err := yaml.Marshal(state)
	if err != nil {
		return errs.Wrapf(err, errs.KindBug, "generate YAML for applied state")
	}
	tmp := filepath.Join(InternalStateDir, ".applied.yml.tmp")
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return errs.Wrapf(err, errs.KindDaemonFailure, "write %s", tmp)
	}
	if err := os.Rename(tmp, AppliedStatePath()); err != nil {
		return errs.Wrapf(err, errs.KindDaemonFailure, "rename %s to %s", tmp, AppliedStatePath())
	}
	return nil
}

// dropAbsent returns a copy of state with every absent-state entry
// removed, since there's no reason to keep remembering an interface the
// caller explicitly removed.
func dropAbsent(state nmstate.NetworkState) nmstate.NetworkState {
	out := nmstate.NewNetworkState()
	out.Version = state.Version
	out.Description = state.Description
	for _, iface := range state.Interfaces.All() {
		if iface.Base.State == nmstate.StateAbsent {
			continue
		}
		out.Interfaces.Set(iface)
	}
	return out
}
