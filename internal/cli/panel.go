package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lazypower/newcomer/internal/panel"
)

var panelExecutor string

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Show or change the operator panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		printPanel(a.panel.State())

		actions, err := a.ledger.ListPanelActions(5)
		if err != nil {
			return err
		}
		if len(actions) > 0 {
			fmt.Println("\nRecent actions:")
			for _, act := range actions {
				fmt.Printf("  %-16s by %s\n", act.Action, act.Executor)
			}
		}
		return nil
	},
}

var panelToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Pause or resume the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.panel.Toggle(panelExecutor)
		if err != nil {
			return err
		}
		printPanel(st)
		return nil
	},
}

var panelModeCmd = &cobra.Command{
	Use:       "mode [manual|semi_auto|off]",
	Short:     "Set the operating mode, or advance to the next one",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(panel.ModeManual), string(panel.ModeSemiAuto), string(panel.ModeOff)},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var st panel.State
		if len(args) == 0 {
			st, err = a.panel.CycleMode(panelExecutor)
		} else {
			mode := panel.Mode(args[0])
			st, err = a.panel.Update(panel.Patch{Mode: &mode}, "mode:"+args[0], panelExecutor)
		}
		if err != nil {
			return err
		}
		printPanel(st)
		return nil
	},
}

func init() {
	panelCmd.PersistentFlags().StringVar(&panelExecutor, "executor", "cli", "Who is issuing the command")
	panelCmd.AddCommand(panelToggleCmd)
	panelCmd.AddCommand(panelModeCmd)
}

func printPanel(st panel.State) {
	status := color.New(color.FgGreen).Sprint("ONLINE")
	if !st.Active {
		status = color.New(color.FgRed).Sprint("PAUSED")
	}
	fmt.Printf("status: %s\n", status)
	fmt.Printf("mode:   %s\n", st.Mode)
	if st.LastCommand != nil && st.LastExecutor != nil {
		fmt.Printf("last:   %s by %s at %s\n", *st.LastCommand, *st.LastExecutor, st.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}
