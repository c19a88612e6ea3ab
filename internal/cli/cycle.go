package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cycleDryRun bool

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one engagement cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, ran := a.scheduler(a.deliverer(cycleDryRun)).RunCycle(context.Background())
		if !ran {
			return fmt.Errorf("cycle already running")
		}
		if report.Gated {
			fmt.Println("Scheduler is paused from the panel; nothing done.")
			return nil
		}

		fmt.Printf("cycle %s\n", report.CycleID)
		fmt.Printf("  candidates: %d (processed %d)\n", report.Candidates, report.Processed)
		fmt.Printf("  delivered:  %d\n", report.Delivered)
		fmt.Printf("  failed:     %d\n", report.Failed)
		fmt.Printf("  skipped:    %d\n", report.Skipped)
		if report.Invalid > 0 {
			fmt.Printf("  invalid:    %d\n", report.Invalid)
		}
		return nil
	},
}

func init() {
	cycleCmd.Flags().BoolVar(&cycleDryRun, "dry-run", false, "Log outreach instead of sending it")
}
