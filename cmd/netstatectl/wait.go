// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/vishvananda/netlink"
)

const waitPollInterval = 200 * time.Millisecond

func runWait(args []string) error {
	fs := flag.NewFlagSet("wait", flag.ExitOnError)
	timeoutSec := fs.Uint("timeout", 0, "maximum wait time in seconds, 0 for no limit")
	fs.Parse(args)

	// Flags may also follow the positional arguments.
	var rest []string
	for fs.NArg() > 0 {
		rest = append(rest, fs.Arg(0))
		fs.Parse(fs.Args()[1:])
	}
	if len(rest) != 2 {
		return fmt.Errorf("usage: netstatectl wait IFNAME up|down [--timeout SECS]")
	}
	ifname, want := rest[0], rest[1]
	if want != "up" && want != "down" {
		return fmt.Errorf("unsupported state to wait: %s", want)
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if *timeoutSec > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*timeoutSec)*time.Second)
		defer cancel()
	}

	for {
		up, err := linkCarrierUp(ifname)
		if err == nil && up == (want == "up") {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout (%s secs) waiting for interface %s to reach state %s", strconv.FormatUint(uint64(*timeoutSec), 10), ifname, want)
		case <-time.After(waitPollInterval):
		}
	}
}

// linkCarrierUp reports whether ifname currently has its carrier up,
// queried straight from netlink since this predates any apply call and
// has no merged state to consult.
func linkCarrierUp(ifname string) (bool, error) {
	link, err := netlink.LinkByName(ifname)
	if err != nil {
		return false, err
	}
	attrs := link.Attrs()
	return attrs.Flags&net.FlagUp != 0 && attrs.OperState == netlink.OperUp, nil
}
