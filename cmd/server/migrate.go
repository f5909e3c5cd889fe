package main

import (
	"log"

	"hireloop/config"
	"hireloop/internal/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envDir)
			if err != nil {
				return err
			}
			db, err := database.NewDB(&cfg.Database)
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return err
			}
			log.Println("migrations applied")
			return nil
		},
	}
}
