// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package merge implements the state-reconciliation merger: combining a
// desired NetworkState with the kernel+plugin current state into a
// MergedNetworkState, and deriving the revert plan, the post-apply diff
// and the post-apply verification from it.
package merge

// ApplyOption controls how an apply call behaves; it's threaded from the
// IPC command all the way down into the merger and the verify loop.
type ApplyOption struct {
	NoVerify bool `yaml:"no-verify,omitempty" json:"no-verify,omitempty"`
}
