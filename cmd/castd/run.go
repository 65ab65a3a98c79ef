package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ledcast/caster/internal/bootstrapfile"
	"github.com/ledcast/caster/internal/cast"
	"github.com/ledcast/caster/internal/config"
	"github.com/ledcast/caster/internal/framebus"
	"github.com/ledcast/caster/internal/logging"
	"github.com/ledcast/caster/internal/mtls"
	"github.com/ledcast/caster/internal/record"
	"github.com/ledcast/caster/internal/websocket"
)

var runLog = logging.L("castd")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the caster daemon",
	Long:  `Start castd: load every configured cast, serve the control surface, and block until SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runDaemon(cfg)
	},
}

// newRecorderFor bridges config.RecordConfig (the wire/on-disk shape) to
// record.Config (the package's standalone shape), so internal/cast never
// imports internal/record directly (it only knows the Recorder interface).
func newRecorderFor(rc config.RecordConfig, castName string, destinations []string) (cast.Recorder, error) {
	return record.New(record.Config{
		Sink:           rc.Sink,
		Path:           rc.Path,
		Bucket:         rc.Bucket,
		Region:         rc.Region,
		Encode:         rc.Encode,
		SegmentSeconds: rc.SegmentSeconds,
	}, castName, destinations)
}

// needsFrameBus reports whether any configured cast consumes from the
// shared frame bus (source_spec "queue:<name>"), in which case run must
// start the C10 bus server before opening any cast.
func needsFrameBus(casts []config.CastConfig) bool {
	for _, c := range casts {
		if strings.HasPrefix(c.SourceSpec, "queue:") {
			return true
		}
	}
	return false
}

func runDaemon(cfg *config.Config) error {
	var busAddr string
	if needsFrameBus(cfg.Casts) {
		bus, err := framebus.Listen(cfg.FrameBusListenAddr)
		if err != nil {
			return fmt.Errorf("castd: start frame bus: %w", err)
		}
		defer bus.Close()
		busAddr = bus.Addr()
		runLog.Info("frame bus listening", "addr", busAddr)
	}

	ctl := cast.NewController(cfg.QueueDepth, busAddr, newRecorderFor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, castCfg := range cfg.Casts {
		if _, err := ctl.StartCast(ctx, castCfg); err != nil {
			runLog.Error("failed to start cast", logging.KeyCastName, castCfg.Name, logging.KeyError, err)
			continue
		}
		runLog.Info("cast started", logging.KeyCastName, castCfg.Name)
	}

	tlsConfig, err := mtls.BuildServerTLSConfig(cfg.ControlCertFile, cfg.ControlKeyFile, cfg.ControlClientCA)
	if err != nil {
		return fmt.Errorf("castd: control surface TLS: %w", err)
	}

	ctrlSrv := websocket.New(ctl)
	ctrlErrCh := make(chan error, 1)
	go func() {
		ctrlErrCh <- ctrlSrv.Start(cfg.ControlListenAddr, tlsConfig)
	}()

	if err := writeBootstrapFile(cfg, ctl); err != nil {
		runLog.Warn("failed to write bootstrap file", logging.KeyError, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		runLog.Info("shutdown signal received")
	case err := <-ctrlErrCh:
		if err != nil {
			runLog.Error("control surface stopped unexpectedly", logging.KeyError, err)
		}
	}

	cancel()
	ctl.StopAll()
	ctrlSrv.Close()
	return nil
}

// writeBootstrapFile publishes the control surface's port and every
// running cast's destinations (spec.md §6's "inter-process file") so an
// auxiliary process can bootstrap without the control surface itself.
func writeBootstrapFile(cfg *config.Config, ctl *cast.Controller) error {
	_, portStr, err := net.SplitHostPort(cfg.ControlListenAddr)
	if err != nil {
		return fmt.Errorf("bootstrap: parse control listen addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("bootstrap: control listen port: %w", err)
	}

	seen := make(map[string]struct{})
	var hosts []string
	for _, snap := range ctl.List() {
		c, ok := ctl.Get(snap.Name)
		if !ok {
			continue
		}
		for _, addr := range c.Destinations() {
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			hosts = append(hosts, addr)
		}
	}

	return bootstrapfile.Write(bootstrapfile.Data{ServerPort: port, AllHosts: hosts})
}
