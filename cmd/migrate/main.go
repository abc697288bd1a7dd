package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safar/crm-service/internal/config"
	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/logging"
)

func main() {
	if err := makeMigrateCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeMigrateCommand() *cobra.Command {
	var dir string

	command := &cobra.Command{
		Use:           "migrate [command]",
		Short:         "Apply or revert the CRM schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	command.PersistentFlags().StringVar(&dir, "dir", "migrations", "directory holding the migration files")

	command.AddCommand(makeDirectionCommand("up", "Apply every migration", database.Up, &dir))
	command.AddCommand(makeDirectionCommand("down", "Revert every migration", database.Down, &dir))

	return command
}

func makeDirectionCommand(use, short string, direction database.Direction, dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(cfg.Log)

			db, err := database.NewConnection(cmd.Context(), &cfg.Database)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			applied, err := database.Migrate(cmd.Context(), db, *dir, direction)
			for _, name := range applied {
				logger.WithField("file", name).Info("migration applied")
			}
			if err != nil {
				return err
			}

			logger.WithField("count", len(applied)).Infof("migrations %s completed", direction)
			return nil
		},
	}
}
