// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package merge

import "grimm.is/netstated/internal/nmstate"

// GenerateRevert produces the NetworkState that, applied after desired,
// restores preApply on exactly the interfaces desired touched: the full
// pre-apply entry if it existed, or an absent marker if it didn't.
func GenerateRevert(desired, preApply nmstate.NetworkState) (nmstate.NetworkState, error) {
	merged, err := Merge(desired, preApply, ApplyOption{})
	if err != nil {
		return nmstate.NetworkState{}, err
	}
	out := nmstate.NewNetworkState()
	for _, mi := range merged.All() {
		if !mi.IsDesired() {
			continue
		}
		if mi.Current != nil {
			out.Interfaces.Set(mi.Current.Clone())
		} else {
			absent := mi.Desired.CloneNameTypeOnly()
			absent.Base.State = nmstate.StateAbsent
			out.Interfaces.Set(absent)
		}
	}
	return out, nil
}
