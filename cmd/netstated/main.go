// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command netstated is the privileged network-state daemon: it binds
// the client-facing Unix socket, spawns the plugin subprocesses, and
// runs the apply engine against the kernel and DHCPv4 workers for the
// lifetime of the process.
package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/netstated/internal/daemon"
	"grimm.is/netstated/internal/dhcp"
	"grimm.is/netstated/internal/engine"
	"grimm.is/netstated/internal/kernel"
	"grimm.is/netstated/internal/logging"
	"grimm.is/netstated/internal/metrics"
	"grimm.is/netstated/internal/plugin"
)

func main() {
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on, empty disables it")
	syslogHost := flag.String("syslog-host", "", "forward logs to this syslog host in addition to stderr, empty disables it")
	syslogPort := flag.Int("syslog-port", 0, "syslog port, defaults to 514")
	flag.Parse()

	out, err := logOutput(*syslogHost, *syslogPort)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(logging.Config{Level: parseLevel(*logLevel), Output: out, ReportTime: true})
	logging.SetDefault(log)

	if err := run(log, *metricsAddr); err != nil {
		log.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

func logOutput(syslogHost string, syslogPort int) (io.Writer, error) {
	if syslogHost == "" {
		return os.Stderr, nil
	}
	cfg := logging.DefaultSyslogConfig()
	cfg.Enabled = true
	cfg.Host = syslogHost
	if syslogPort != 0 {
		cfg.Port = syslogPort
	}
	w, err := logging.NewSyslogWriter(cfg)
	if err != nil {
		return nil, err
	}
	return io.MultiWriter(os.Stderr, w), nil
}

func run(log *logging.Logger, metricsAddr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := kernel.NewLinuxAdapter()

	plugins, err := plugin.New(ctx, log)
	if err != nil {
		return err
	}
	defer plugins.Shutdown(ctx)

	engineMetrics := metrics.NewEngine()
	dhcpMetrics := metrics.NewDHCP()
	engineMetrics.Register()
	dhcpMetrics.Register()

	dhcpMgr := dhcp.NewManager(engine.DHCPApplyFunc(k), dhcpMetrics)
	defer dhcpMgr.Shutdown()

	eng := engine.New(k, plugins, dhcpMgr, engineMetrics, log)

	srv := daemon.New(eng, log)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Close()

	if metricsAddr != "" {
		serveMetrics(log, metricsAddr)
	}

	log.Info("netstated started", "plugins", plugins.Count())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	return nil
}

func serveMetrics(log *logging.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
