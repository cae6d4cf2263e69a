// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"flag"
	"fmt"

	"grimm.is/netstated/internal/merge"
	"grimm.is/netstated/internal/nmstate"
)

func runApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	noVerify := fs.Bool("no-verify", false, "skip post-apply verification and rollback")
	noDaemon := fs.Bool("no-daemon", false, "do not connect to the netstated daemon")
	fs.Parse(args)

	// Flags may also follow the positional arguments.
	var rest []string
	for fs.NArg() > 0 {
		rest = append(rest, fs.Arg(0))
		fs.Parse(fs.Args()[1:])
	}
	stateFile := "-"
	if len(rest) > 0 {
		stateFile = rest[0]
	}
	desired, err := stateFromFile(stateFile)
	if err != nil {
		return err
	}
	opt := merge.ApplyOption{NoVerify: *noVerify}

	var diff nmstate.NetworkState
	if *noDaemon {
		eng := localEngine()
		diff, err = eng.Apply(context.Background(), desired, opt, nil)
	} else {
		diff, err = applyViaDaemon(desired, opt)
	}
	if err != nil {
		return err
	}

	if diff.Interfaces.Len() == 0 {
		fmt.Println("Nothing changed")
		return nil
	}
	fmt.Println("Changed state:\n---")
	return printState(diff)
}

func applyViaDaemon(desired nmstate.NetworkState, opt merge.ApplyOption) (nmstate.NetworkState, error) {
	conn, err := dialDaemon()
	if err != nil {
		return nmstate.NetworkState{}, err
	}
	defer conn.Close()

	payload := struct {
		State nmstate.NetworkState `json:"state"`
		Opt   merge.ApplyOption    `json:"opt"`
	}{State: desired, Opt: opt}
	if err := conn.Send("ApplyNetworkState", payload); err != nil {
		return nmstate.NetworkState{}, err
	}
	var diff nmstate.NetworkState
	if err := conn.Recv(&diff, drainLogs); err != nil {
		return nmstate.NetworkState{}, err
	}
	return diff, nil
}
