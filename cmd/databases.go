package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var databasesFlags targetFlags

var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List the logical databases on a target",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, registry, err := newOperator()
		if err != nil {
			return err
		}

		t, err := databasesFlags.resolve(cmd.Context(), registry)
		if err != nil {
			return err
		}

		databases, err := op.ListDatabases(cmd.Context(), t)
		if err != nil {
			return err
		}
		for _, name := range databases {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	databasesFlags.register(databasesCmd)
	rootCmd.AddCommand(databasesCmd)
}
