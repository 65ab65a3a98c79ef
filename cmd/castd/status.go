package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledcast/caster/internal/bootstrapfile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the running daemon's control port and destinations",
	Long:  `Reads the inter-process bootstrap file written by "run" (spec.md §6) without talking to the control surface directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := bootstrapfile.Read()
		if err != nil {
			return fmt.Errorf("castd is not running (or has not written a bootstrap file yet): %w", err)
		}
		fmt.Printf("control surface port: %d\n", d.ServerPort)
		if len(d.AllHosts) == 0 {
			fmt.Println("no cast destinations registered")
			return nil
		}
		fmt.Println("cast destinations:")
		for _, h := range d.AllHosts {
			fmt.Printf("  %s\n", h)
		}
		return nil
	},
}
