// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import "fmt"

func runPing(args []string) error {
	conn, err := dialDaemon()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send("Ping", nil); err != nil {
		return err
	}
	var reply string
	if err := conn.Recv(&reply, drainLogs); err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}
