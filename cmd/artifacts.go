package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect and manage stored artifacts",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, _, err := newOperator()
		if err != nil {
			return err
		}

		artifacts, err := op.Catalog().List()
		if err != nil {
			return err
		}
		if len(artifacts) == 0 {
			fmt.Println("no artifacts")
			return nil
		}

		for _, art := range artifacts {
			meta := ""
			if !art.HasMetadata {
				meta = color.YellowString(" (no metadata)")
			}
			fmt.Printf("%s  %s  %d bytes  %s%s\n",
				art.Name,
				art.Database,
				art.Size,
				art.CreatedAt.Format("2006-01-02 15:04:05"),
				meta,
			)
		}
		return nil
	},
}

var artifactsDeleteCmd = &cobra.Command{
	Use:   "delete <artifact>",
	Short: "Delete an artifact and its metadata sidecar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, _, err := newOperator()
		if err != nil {
			return err
		}
		if err := op.Catalog().Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", color.GreenString("deleted"), args[0])
		return nil
	},
}

func init() {
	artifactsCmd.AddCommand(artifactsListCmd)
	artifactsCmd.AddCommand(artifactsDeleteCmd)
	rootCmd.AddCommand(artifactsCmd)
}
