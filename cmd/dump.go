package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dumpFlags struct {
	targetFlags
	Databases []string
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump one or more databases into artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, registry, err := newOperator()
		if err != nil {
			return err
		}

		t, err := dumpFlags.resolve(cmd.Context(), registry)
		if err != nil {
			return err
		}

		databases := dumpFlags.Databases
		if len(databases) == 0 {
			// Empty means "the configured default"; the builder substitutes it.
			databases = []string{""}
		}

		arts, err := op.DumpMany(cmd.Context(), t, databases)
		for _, art := range arts {
			fmt.Printf("%s %s (%d bytes, database %s)\n",
				color.GreenString("created"), art.Name, art.Size, art.Database)
		}
		return err
	},
}

func init() {
	dumpFlags.register(dumpCmd)
	dumpCmd.Flags().
		StringSliceVarP(&dumpFlags.Databases, "database", "d", nil, "database name (repeatable)")
	rootCmd.AddCommand(dumpCmd)
}
