// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nmstate

// StateKind selects which NetworkState a QueryOption asks for.
type StateKind string

const (
	KindRunning StateKind = "running"
	KindSaved   StateKind = "saved"
)

// QueryOption is the wire payload for the daemon's and a plugin's
// QueryNetworkState command.
type QueryOption struct {
	Version int       `yaml:"version,omitempty" json:"version,omitempty"`
	Kind    StateKind `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// RunningQueryOption asks for the kernel's live state.
func RunningQueryOption() QueryOption {
	return QueryOption{Version: CurrentSchemaVersion, Kind: KindRunning}
}

// SavedQueryOption asks for the last persisted state.
func SavedQueryOption() QueryOption {
	return QueryOption{Version: CurrentSchemaVersion, Kind: KindSaved}
}
