package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrail-api/internal/platform/postgres"
	"github.com/spf13/cobra"
)

// migrateCommands are the goose commands exposed by `tasktrail migrate`.
var migrateCommands = []string{"up", "down", "status", "version", "reset"}

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|reset]",
		Short:     "Apply or inspect database migrations",
		Args:      validateMigrateArgs,
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			cfg, log, err := loadAppConfig(flags)
			if err != nil {
				return err
			}

			// A correlation id ties together every log line of one run.
			log = log.With(
				"correlation_id", uuid.NewString(),
				"component", "migrations",
				"command", command)

			db, err := openDatabase(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			start := time.Now()
			log.Info("starting migration operation")
			if err := postgres.Migrate(cmd.Context(), db, log, command); err != nil {
				log.Error("migration operation failed", "error", err, "duration", time.Since(start))
				return err
			}
			log.Info("migration operation completed", "duration", time.Since(start))
			return nil
		},
	}
}

func validateMigrateArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("migrate takes at most one command, got %d", len(args))
	}
	if len(args) == 1 && !slices.Contains(migrateCommands, args[0]) {
		return fmt.Errorf("unknown migrate command %q (want one of %v)", args[0], migrateCommands)
	}
	return nil
}
