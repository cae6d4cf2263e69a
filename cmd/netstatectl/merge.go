// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"grimm.is/netstated/internal/nmstate"
)

func runMerge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	showDiff := fs.Bool("diff", false, "print a unified diff of old vs merged state instead of the merged state itself")
	fs.Parse(args)

	// Flags may also follow the positional arguments.
	var rest []string
	for fs.NArg() > 0 {
		rest = append(rest, fs.Arg(0))
		fs.Parse(fs.Args()[1:])
	}
	if len(rest) != 2 {
		return fmt.Errorf("usage: netstatectl merge OLD_STATE_FILE NEW_STATE_FILE [--diff]")
	}
	oldState, err := stateFromFile(rest[0])
	if err != nil {
		return err
	}
	newState, err := stateFromFile(rest[1])
	if err != nil {
		return err
	}
	merged := nmstate.MergeStates(oldState, newState)

	if !*showDiff {
		return printState(merged)
	}
	return printDiff(oldState, merged, rest[0], "merged")
}

func printDiff(before, after nmstate.NetworkState, beforeName, afterName string) error {
	beforeYAML, err := yaml.Marshal(before)
	if err != nil {
		return fmt.Errorf("render %s: %w", beforeName, err)
	}
	afterYAML, err := yaml.Marshal(after)
	if err != nil {
		return fmt.Errorf("render %s: %w", afterName, err)
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(beforeYAML)),
		B:        difflib.SplitLines(string(afterYAML)),
		FromFile: beforeName,
		ToFile:   afterName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Errorf("compute diff: %w", err)
	}
	fmt.Fprint(os.Stdout, text)
	return nil
}
