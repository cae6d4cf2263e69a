// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"grimm.is/netstated/internal/nmstate"
)

// stateFromFile reads a NetworkState as kebab-case YAML from path, or
// from stdin when path is "-".
func stateFromFile(path string) (nmstate.NetworkState, error) {
	var content []byte
	var err error
	if path == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return nmstate.NetworkState{}, fmt.Errorf("read %s: %w", path, err)
	}
	var state nmstate.NetworkState
	if err := yaml.Unmarshal(content, &state); err != nil {
		return nmstate.NetworkState{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if state.Interfaces.Kernel == nil || state.Interfaces.User == nil {
		state.Interfaces = nmstate.NewInterfaces()
	}
	return state, nil
}

func printState(state nmstate.NetworkState) error {
	out, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("render state: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
