package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var probeFlags struct {
	targetFlags
	Timeout time.Duration
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Wait until a target's database accepts connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, registry, err := newOperator()
		if err != nil {
			return err
		}

		t, err := probeFlags.resolve(cmd.Context(), registry)
		if err != nil {
			return err
		}

		timeout := probeFlags.Timeout
		if timeout == 0 {
			timeout = cfg.Probe.Timeout
		}

		if err := op.ProbeReady(cmd.Context(), t, timeout); err != nil {
			return err
		}
		fmt.Printf("%s %s is ready\n", color.GreenString("ok"), t.Name)
		return nil
	},
}

func init() {
	probeFlags.register(probeCmd)
	probeCmd.Flags().
		DurationVar(&probeFlags.Timeout, "timeout", 0, "probe budget (defaults to probe.timeout from config)")
	rootCmd.AddCommand(probeCmd)
}
