package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledcast/caster/internal/discovery"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run device discovery once and print candidates",
	Long:  `Runs the C12 mDNS + ARP probes once and prints every discovered lighting controller. Never registers a cast destination on its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		devices := discovery.Discover(ctx, discovery.Config{
			Subnets:     cfg.DiscoverySubnets,
			MDNSTimeout: time.Duration(cfg.DiscoveryMDNSSeconds) * time.Second,
		})

		if len(devices) == 0 {
			fmt.Println("no devices found")
			return nil
		}
		for _, d := range devices {
			fmt.Printf("%-16s source=%-6s matrix=%dx%d seen=%s\n", d.Addr, d.Source, d.MatrixW, d.MatrixH, d.SeenAt.Format(time.RFC3339))
		}
		return nil
	},
}
