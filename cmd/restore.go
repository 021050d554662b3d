package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var restoreFlags struct {
	targetFlags
	Database string
}

var restoreCmd = &cobra.Command{
	Use:   "restore <artifact>",
	Short: "Restore an artifact into a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, registry, err := newOperator()
		if err != nil {
			return err
		}

		t, err := restoreFlags.resolve(cmd.Context(), registry)
		if err != nil {
			return err
		}

		result, err := op.Restore(cmd.Context(), t, args[0], restoreFlags.Database)
		if err != nil {
			return err
		}

		if result.Warnings {
			fmt.Printf("%s restored %s into %s (restore tool reported warnings)\n",
				color.YellowString("warning"), args[0], result.Database)
			return nil
		}
		fmt.Printf("%s restored %s into %s\n",
			color.GreenString("ok"), args[0], result.Database)
		return nil
	},
}

func init() {
	restoreFlags.register(restoreCmd)
	restoreCmd.Flags().
		StringVarP(&restoreFlags.Database, "database", "d", "", "target database (defaults to the artifact's recorded one)")
	rootCmd.AddCommand(restoreCmd)
}
