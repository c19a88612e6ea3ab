package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lazypower/newcomer/internal/engine"
	"github.com/lazypower/newcomer/internal/member"
)

var (
	membersBand    string
	membersPending bool
	membersJSON    bool
)

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Inspect tracked members",
}

var membersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked members, oldest join first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		b := a.bands()
		var shown []member.Record
		for _, rec := range a.store.List() {
			if membersBand != "" && string(member.BandFor(rec.RiskScore, b.High, b.Medium)) != membersBand {
				continue
			}
			if membersPending && rec.OutreachSent {
				continue
			}
			shown = append(shown, rec)
		}

		if membersJSON {
			return writeJSON(shown)
		}
		if len(shown) == 0 {
			fmt.Println("No members tracked.")
			return nil
		}
		for _, rec := range shown {
			fmt.Printf("%s  %-24s %s  joined %s  %s\n",
				riskLabel(rec.RiskScore, b.High, b.Medium),
				truncate(rec.Name, 24),
				rec.ID,
				rec.JoinedAt.Local().Format(time.DateTime),
				outreachLabel(rec))
		}
		fmt.Printf("\n%d member(s)\n", len(shown))
		return nil
	},
}

var membersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one member with the current engagement decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, ok := a.store.Get(args[0])
		if !ok {
			return fmt.Errorf("member %s not found", args[0])
		}
		d := engine.Evaluate(rec, time.Now(), a.thresholds())

		if membersJSON {
			return writeJSON(map[string]any{"member": rec, "decision": d})
		}

		b := a.bands()
		fmt.Printf("%s (%s)\n", rec.Name, rec.ID)
		fmt.Printf("  risk:      %s\n", riskLabel(rec.RiskScore, b.High, b.Medium))
		fmt.Printf("  joined:    %s\n", rec.JoinedAt.Local().Format(time.DateTime))
		fmt.Printf("  updated:   %s\n", rec.UpdatedAt.Local().Format(time.DateTime))
		fmt.Printf("  outreach:  %s\n", outreachLabel(rec))
		fmt.Printf("  clicked:   %t\n", rec.CTAEngaged)
		if rec.Badge != nil {
			fmt.Printf("  badge:     %s\n", *rec.Badge)
		}
		fmt.Printf("  channels:  %v\n", rec.VisitedChannels)
		fmt.Printf("  decision:  %s (%s)\n", d.Kind, d.Rationale)

		if len(rec.Interactions) > 0 {
			fmt.Println("  interactions:")
			for _, i := range rec.Interactions {
				fmt.Printf("    %s  %s\n", i.Timestamp.Local().Format(time.DateTime), i.Action)
			}
		}
		if len(rec.StaffAlerts) > 0 {
			fmt.Println("  staff alerts:")
			for _, s := range rec.StaffAlerts {
				fmt.Printf("    - %s\n", s)
			}
		}

		attempts, err := a.ledger.ListOutreach(rec.ID, 5)
		if err == nil && len(attempts) > 0 {
			fmt.Println("  outreach attempts:")
			for _, at := range attempts {
				fmt.Printf("    %s  %s  delivered=%t\n",
					time.UnixMilli(at.CreatedAt).Format(time.DateTime), at.Decision, at.Delivered)
			}
		}
		return nil
	},
}

func init() {
	membersListCmd.Flags().StringVar(&membersBand, "band", "", "Only show members in this risk band (high, medium, low)")
	membersListCmd.Flags().BoolVar(&membersPending, "pending", false, "Only show members not yet contacted")
	membersCmd.PersistentFlags().BoolVar(&membersJSON, "json", false, "Print JSON")

	membersCmd.AddCommand(membersListCmd)
	membersCmd.AddCommand(membersShowCmd)
}

func riskLabel(score, high, medium int) string {
	label := fmt.Sprintf("%3d", score)
	switch member.BandFor(score, high, medium) {
	case member.BandHigh:
		return color.New(color.FgRed).Sprint(label)
	case member.BandMedium:
		return color.New(color.FgYellow).Sprint(label)
	default:
		return color.New(color.FgGreen).Sprint(label)
	}
}

func outreachLabel(rec member.Record) string {
	if !rec.OutreachSent {
		return color.New(color.FgBlue).Sprint("pending")
	}
	return color.New(color.Faint).Sprint("contacted")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
