package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lazypower/newcomer/internal/config"
	"github.com/lazypower/newcomer/internal/member"
)

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Validate member files and report what sanitization would change",
	Long: "Runs each member file through the validation layer without modifying it. " +
		"With no arguments every file in the configured members directory is checked.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	files := args
	if len(files) == 0 {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		files, err = filepath.Glob(filepath.Join(cfg.MembersDir(), "*.json"))
		if err != nil {
			return fmt.Errorf("list member files: %w", err)
		}
	}

	now := time.Now()
	var invalid, sanitized int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		res, err := member.Decode(data, now)
		switch {
		case err != nil:
			invalid++
			fmt.Printf("%s %s: %v\n", color.New(color.FgRed).Sprint("INVALID"), path, err)
		case !res.Valid:
			invalid++
			fmt.Printf("%s %s: %s\n", color.New(color.FgRed).Sprint("INVALID"), path, strings.Join(res.Issues, "; "))
		case len(res.Issues) > 0:
			sanitized++
			fmt.Printf("%s   %s\n", color.New(color.FgYellow).Sprint("FIXED"), path)
			for _, issue := range res.Issues {
				fmt.Printf("          - %s\n", issue)
			}
		default:
			fmt.Printf("%s      %s\n", color.New(color.FgGreen).Sprint("OK"), path)
		}
	}

	fmt.Printf("\n%d file(s), %d sanitized, %d invalid\n", len(files), sanitized, invalid)
	if invalid > 0 {
		return fmt.Errorf("%d invalid member file(s)", invalid)
	}
	return nil
}
