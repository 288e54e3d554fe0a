// Package main implements the tasktrail command: the task tracking API
// server plus its migration and account bootstrap subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/tasktrail-api/internal/config"
	"github.com/phrazzld/tasktrail-api/internal/platform/logger"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	envFiles   []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "tasktrail",
		Short:         "Task tracking API with per-field change history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "",
		"path to a config file (default: ./config.yaml when present)")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"},
		"dotenv files loaded before reading the environment")

	root.AddCommand(
		newServeCmd(flags),
		newMigrateCmd(flags),
		newCreateUserCmd(flags),
	)
	return root
}

// loadAppConfig loads configuration and sets up structured logging with the
// configured level.
func loadAppConfig(flags *globalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigFile: flags.configFile,
		EnvFiles:   flags.envFiles,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database", maskDatabaseURL(cfg.Database.URL),
		"redis_configured", cfg.Redis.URL != "")
	return cfg, log, nil
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the history job runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadAppConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			db, err := openDatabase(ctx, cfg.Database, log)
			if err != nil {
				return err
			}

			app, err := newApplication(ctx, cfg, log, db)
			if err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return app.Run(ctx)
		},
	}
}

func newCreateUserCmd(flags *globalFlags) *cobra.Command {
	var email, firstName, lastName, password string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account that can log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadAppConfig(flags)
			if err != nil {
				return err
			}

			db, err := openDatabase(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			user, err := createUser(cmd.Context(), cfg, log, db, userFlags{
				email:     email,
				firstName: firstName,
				lastName:  lastName,
				password:  password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s>\n", user.ID, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&password, "password", "", "password (at least 8 characters)")
	for _, name := range []string{"email", "first-name", "last-name", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
