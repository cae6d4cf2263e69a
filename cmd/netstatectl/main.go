// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: netstatectl <command> [args]

commands:
  ping                                  check daemon connection
  show [IFNAME] [--no-daemon] [--saved] query network state
  apply [STATE_FILE|-] [--no-verify] [--no-daemon]
                                        apply network state
  merge OLD_FILE NEW_FILE              merge two network states
  wait IFNAME up|down [--timeout SECS] wait for an interface's state`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "ping":
		err = runPing(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	case "apply":
		err = runApply(os.Args[2:])
	case "merge":
		err = runMerge(os.Args[2:])
	case "wait":
		err = runWait(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
