package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanupMaxAgeDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete artifacts older than the retention threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, _, err := newOperator()
		if err != nil {
			return err
		}

		maxAge := cleanupMaxAgeDays
		if maxAge == 0 {
			maxAge = cfg.Backup.MaxAgeDays
		}

		result, err := op.Catalog().Sweep(maxAge, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("%s %d artifact(s) older than %d days\n",
			color.GreenString("deleted"), result.Count(), maxAge)
		for _, name := range result.Deleted {
			fmt.Println("  " + name)
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().
		IntVar(&cleanupMaxAgeDays, "max-age-days", 0, "age threshold in days (defaults to backup.max_age_days)")
	rootCmd.AddCommand(cleanupCmd)
}
