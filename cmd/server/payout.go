package main

import (
	"context"
	"fmt"
	"strconv"

	"hireloop/config"
	"hireloop/internal/database"
	"hireloop/internal/repository"

	"github.com/spf13/cobra"
)

// payoutCmd records a payee's connected payout account after onboarding
// with the payment processor has finished out of band.
func payoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-payout [freelancer|service_provider] [profile-id] [account-ref]",
		Short: "Attach a payout account to a payee profile",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid profile id %q", args[1])
			}
			cfg, err := config.Load(envDir)
			if err != nil {
				return err
			}
			db, err := database.NewDB(&cfg.Database)
			if err != nil {
				return err
			}
			profiles := repository.NewProfileRepository(db)
			if err := profiles.SetPayoutAccount(context.Background(), args[0], uint(profileID), args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s profile %d now pays out to %s\n", args[0], profileID, args[2])
			return nil
		},
	}
}
