package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/newcomer/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the engagement dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		records := a.store.List()
		b := a.bands()
		s := stats.Compute(records, time.Now(), b)

		fmt.Printf("members:      %d (%d active in 24h)\n", s.Total, s.Active24h)
		fmt.Printf("risk:         %d high, %d medium, %d low\n", s.HighRisk, s.MediumRisk, s.LowRisk)
		fmt.Printf("contacted:    %d\n", s.OutreachSent)
		fmt.Printf("clicked:      %d (%.1f%% conversion)\n", s.CTAEngaged, s.ConversionRate)

		delivered, failed, err := a.ledger.CountOutreach()
		if err == nil {
			fmt.Printf("deliveries:   %d ok, %d failed\n", delivered, failed)
		}

		if high := stats.HighRiskMembers(records, b, 5); len(high) > 0 {
			fmt.Println("\nHighest risk:")
			for _, r := range high {
				fmt.Printf("  %s  %s (%s)\n", riskLabel(r.RiskScore, b.High, b.Medium), r.Name, r.ID)
			}
		}
		if recent := stats.RecentInteractions(records, 5); len(recent) > 0 {
			fmt.Println("\nRecent activity:")
			for _, act := range recent {
				fmt.Printf("  %s  %-12s %s\n", act.Timestamp.Local().Format(time.DateTime), act.Action, act.Name)
			}
		}
		return nil
	},
}
