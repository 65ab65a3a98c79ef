package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledcast/caster/internal/framebus"
	"github.com/ledcast/caster/internal/logging"
	"github.com/ledcast/caster/internal/source"
)

var mobileLog = logging.L("mobile-server")

var mobileServerCmd = &cobra.Command{
	Use:   "mobile-server <file>",
	Short: "Feed a decoded media file into a frame bus slot",
	Long:  `Implements --run-mobile-server <file> (spec.md §6): an auxiliary producer decoding a media file and publishing frames to a named frame bus slot so a cast with source_spec "queue:<name>" can consume them.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		slot, _ := cmd.Flags().GetString("slot")
		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")
		rate, _ := cmd.Flags().GetInt("rate")
		if rate <= 0 {
			rate = cfg.DefaultRateFPS
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return runMobileServer(ctx, cfg.FrameBusListenAddr, slot, args[0], width, height, rate)
	},
}

func init() {
	mobileServerCmd.Flags().String("slot", "mobile", "frame bus slot name to publish into")
	mobileServerCmd.Flags().Int("width", 64, "decode target width")
	mobileServerCmd.Flags().Int("height", 32, "decode target height")
	mobileServerCmd.Flags().Int("rate", 0, "frames per second (defaults to default_rate from config)")
}

func runMobileServer(ctx context.Context, busAddr, slot, path string, width, height, rate int) error {
	client, err := framebus.Dial(busAddr)
	if err != nil {
		return fmt.Errorf("mobile-server: dial frame bus at %s: %w", busAddr, err)
	}
	defer client.Close()

	if err := client.Create(slot, width, height); err != nil {
		return fmt.Errorf("mobile-server: create slot %q: %w", slot, err)
	}

	media := source.NewMediaFile(path, width, height)
	if err := media.Open(ctx); err != nil {
		return fmt.Errorf("mobile-server: open %q: %w", path, err)
	}
	defer media.Close()

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	mobileLog.Info("publishing media file to frame bus", "path", path, "slot", slot, "rate", rate)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f, err := media.NextFrame(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					mobileLog.Info("media file exhausted", "path", path)
					return nil
				}
				return fmt.Errorf("mobile-server: decode frame: %w", err)
			}
			if err := client.Put(slot, f); err != nil {
				return fmt.Errorf("mobile-server: publish frame: %w", err)
			}
		}
	}
}
