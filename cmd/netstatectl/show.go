// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"flag"
	"fmt"

	"grimm.is/netstated/internal/nmstate"
)

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	noDaemon := fs.Bool("no-daemon", false, "do not connect to the netstated daemon")
	saved := fs.Bool("saved", false, "show the daemon's saved state only")
	fs.Parse(args)

	// Flags may also follow the positional arguments.
	var rest []string
	for fs.NArg() > 0 {
		rest = append(rest, fs.Arg(0))
		fs.Parse(fs.Args()[1:])
	}
	var ifname string
	if len(rest) > 0 {
		ifname = rest[0]
	}

	var state nmstate.NetworkState
	if *noDaemon {
		if *saved {
			return fmt.Errorf("--no-daemon cannot be used with --saved")
		}
		eng := localEngine()
		var err error
		state, err = eng.Query(context.Background(), nmstate.RunningQueryOption(), nil)
		if err != nil {
			return err
		}
	} else {
		conn, err := dialDaemon()
		if err != nil {
			return err
		}
		defer conn.Close()

		opt := nmstate.RunningQueryOption()
		if *saved {
			opt = nmstate.SavedQueryOption()
		}
		if err := conn.Send("QueryNetworkState", opt); err != nil {
			return err
		}
		if err := conn.Recv(&state, drainLogs); err != nil {
			return err
		}
	}

	if ifname != "" {
		state = filterState(state, ifname)
	}
	return printState(state)
}

func filterState(state nmstate.NetworkState, name string) nmstate.NetworkState {
	out := nmstate.NewNetworkState()
	out.Version = state.Version
	out.Description = state.Description
	for _, iface := range state.Interfaces.All() {
		if iface.Base.Name == name {
			out.Interfaces.Set(iface)
		}
	}
	return out
}
