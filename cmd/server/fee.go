package main

import (
	"fmt"
	"strconv"

	"hireloop/config"
	"hireloop/pkg/fees"

	"github.com/spf13/cobra"
)

func feeCmd() *cobra.Command {
	var percent float64
	cmd := &cobra.Command{
		Use:   "fee [amount]",
		Short: "Show the checkout breakdown for a base amount in major units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			if !cmd.Flags().Changed("percent") {
				cfg, err := config.Load(envDir)
				if err != nil {
					return err
				}
				percent = cfg.Escrow.PlatformFeePercent
			}
			b, err := fees.Calculate(amount, percent)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "base:  %d\n", b.Base)
			fmt.Fprintf(out, "fee:   %d (%.2f%%)\n", b.Fee, percent)
			fmt.Fprintf(out, "total: %d\n", b.Total)
			return nil
		},
	}
	cmd.Flags().Float64Var(&percent, "percent", fees.DefaultPercent, "platform fee percent (defaults to PLATFORM_FEE_PERCENT)")
	return cmd
}
