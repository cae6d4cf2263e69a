// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"io"
	"log/syslog"

	"grimm.is/netstated/internal/errs"
)

// SyslogConfig configures an optional remote syslog sink for the daemon's
// logger, layered on top of the normal stderr/JSON output.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns syslog forwarding disabled, with the
// conventional UDP 514 defaults applied if it's later enabled.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "netstated",
		Facility: 1,
	}
}

func facilityOf(f int) syslog.Priority {
	return syslog.Priority(f << 3)
}

// NewSyslogWriter dials a remote syslog daemon and returns an io.Writer
// that forwards log lines to it. cfg.Host is required; Port/Protocol/Tag
// are defaulted if left zero.
func NewSyslogWriter(cfg SyslogConfig) (io.Writer, error) {
	if cfg.Host == "" {
		return nil, errs.New(errs.KindInvalidArgument, "syslog: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "netstated"
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	w, err := syslog.Dial(cfg.Protocol, addr, facilityOf(cfg.Facility), cfg.Tag)
	if err != nil {
		return nil, errs.Wrapf(err, errs.KindIpcFailure, "syslog: dial %s", addr)
	}
	return w, nil
}
